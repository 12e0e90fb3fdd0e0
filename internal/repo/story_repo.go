package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/speechbox/server/internal/model"
)

const storyColumns = `id, box_id, session_id, created_at, updated_at, filename, token`

// StoryRepo defines the interface for story repository operations
type StoryRepo interface {
	Create(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, now time.Time) (model.Story, error)
	GetByID(ctx context.Context, id model.StoryID) (model.Story, error)
	SetAudio(ctx context.Context, id model.StoryID, filename string, now time.Time) error
	BindTokenToLatest(ctx context.Context, sessionID model.SessionID, token model.ParticipationToken) (bool, error)
}

type storyRepo struct {
	db Querier
}

// NewStoryRepo creates a new StoryRepo instance
func NewStoryRepo(db Querier) StoryRepo {
	return &storyRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStory(row rowScanner) (model.Story, error) {
	var story model.Story
	var id, boxID int
	var sessionStr string
	var filename, token sql.NullString
	if err := row.Scan(&id, &boxID, &sessionStr, &story.CreatedAt, &story.UpdatedAt, &filename, &token); err != nil {
		return model.Story{}, err
	}
	sessionID, err := uuid.Parse(sessionStr)
	if err != nil {
		return model.Story{}, fmt.Errorf("failed to parse session ID: %w", err)
	}
	story.ID = model.StoryID(id)
	story.BoxID = model.BoxID(boxID)
	story.SessionID = model.SessionID(sessionID)
	story.Filename = nullString(filename)
	if token.Valid {
		t := model.ParticipationToken(token.String)
		story.Token = &t
	}
	return story, nil
}

// Create inserts a new story for the session. Every call creates a new row.
func (r *storyRepo) Create(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, now time.Time) (model.Story, error) {
	query := `
		INSERT INTO stories (box_id, session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING ` + storyColumns

	story, err := scanStory(r.db.QueryRowContext(ctx, query, int(boxID), sessionID.UUID(), now))
	if err != nil {
		return model.Story{}, fmt.Errorf("failed to create story: %w", err)
	}
	return story, nil
}

// GetByID retrieves a story by ID
func (r *storyRepo) GetByID(ctx context.Context, id model.StoryID) (model.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`

	story, err := scanStory(r.db.QueryRowContext(ctx, query, int(id)))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Story{}, fmt.Errorf("story not found: %w", err)
		}
		return model.Story{}, fmt.Errorf("failed to query story: %w", err)
	}
	return story, nil
}

// SetAudio attaches the uploaded file name. An unknown id updates nothing and is not an error here.
func (r *storyRepo) SetAudio(ctx context.Context, id model.StoryID, filename string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stories SET filename = $2, updated_at = $3 WHERE id = $1
	`, int(id), filename, now)
	if err != nil {
		return fmt.Errorf("set story audio: %w", err)
	}
	return nil
}

// BindTokenToLatest binds the token to the newest story of the session, if there is one.
func (r *storyRepo) BindTokenToLatest(ctx context.Context, sessionID model.SessionID, token model.ParticipationToken) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE stories SET token = $2
		WHERE id = (
			SELECT id FROM stories
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
	`, sessionID.UUID(), string(token))
	if err != nil {
		return false, fmt.Errorf("bind token to story: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
