package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/speechbox/server/internal/model"
)

const sessionColumns = `id, box_id, created_at,
	init_state, welcome_state, recording_state, confirmation_state, confirmation_answer,
	token_prompt_state, no_token_prompt_state, thank_you_prompt_state,
	questionnaire_share_state, questionnaire_no_share_state, idle_state, audio_error_state,
	replay_count, recording_length, record_stop_reason, token`

// stateColumns maps every UI state to the timestamp column it overwrites.
var stateColumns = map[model.SessionState]string{
	model.StateInit:                 "init_state",
	model.StateWelcome:              "welcome_state",
	model.StateRecording:            "recording_state",
	model.StateConfirmation:         "confirmation_state",
	model.StateTokenPrompt:          "token_prompt_state",
	model.StateNoTokenPrompt:        "no_token_prompt_state",
	model.StateThankYouPrompt:       "thank_you_prompt_state",
	model.StateQuestionnaireShare:   "questionnaire_share_state",
	model.StateQuestionnaireNoShare: "questionnaire_no_share_state",
	model.StateIdle:                 "idle_state",
	model.StateAudioError:           "audio_error_state",
}

// SessionUpdate is a single-column change to a session row. Build one with
// StateUpdate, ConfirmationAnswerUpdate, RecordingLengthUpdate,
// RecordStopReasonUpdate or ReplayIncrement.
type SessionUpdate struct {
	name   string
	column string
	expr   string
	arg    interface{}
}

// Name is a short label for logs and metrics.
func (u SessionUpdate) Name() string { return u.name }

// StateUpdate stamps the column of the given state with at.
func StateUpdate(state model.SessionState, at time.Time) SessionUpdate {
	return SessionUpdate{name: state.String(), column: stateColumns[state], expr: "$2", arg: at}
}

// ConfirmationAnswerUpdate stores the participant's answer on the confirmation screen.
func ConfirmationAnswerUpdate(answer int) SessionUpdate {
	return SessionUpdate{name: "confirmationAnswer", column: "confirmation_answer", expr: "$2", arg: answer}
}

// RecordingLengthUpdate stores the recording length in milliseconds.
func RecordingLengthUpdate(ms int64) SessionUpdate {
	return SessionUpdate{name: "recordingLength", column: "recording_length", expr: "$2", arg: ms}
}

// RecordStopReasonUpdate stores why the recording ended.
func RecordStopReasonUpdate(reason model.RecordingStopReason) SessionUpdate {
	return SessionUpdate{name: "recordStopReason", column: "record_stop_reason", expr: "$2", arg: string(reason)}
}

// ReplayIncrement bumps the replay counter by one.
func ReplayIncrement() SessionUpdate {
	return SessionUpdate{name: "replay", column: "replay_count", expr: "replay_count + 1"}
}

// SessionRepo defines the interface for session repository operations
type SessionRepo interface {
	GetOrCreate(ctx context.Context, boxID model.BoxID, id model.SessionID, now time.Time) (model.Session, error)
	GetByID(ctx context.Context, id model.SessionID) (model.Session, error)
	Apply(ctx context.Context, id model.SessionID, u SessionUpdate) error
	BindToken(ctx context.Context, id model.SessionID, token model.ParticipationToken) error
}

type sessionRepo struct {
	db Querier
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db Querier) SessionRepo {
	return &sessionRepo{db: db}
}

// GetOrCreate inserts the session if it does not exist yet and returns the stored row.
// A concurrent insert of the same id makes ours a no-op; the re-read then sees the winner's row.
func (r *sessionRepo) GetOrCreate(ctx context.Context, boxID model.BoxID, id model.SessionID, now time.Time) (model.Session, error) {
	query := `
		INSERT INTO sessions (id, box_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, id.UUID(), int(boxID), now)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to insert session: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID retrieves a session by ID
func (r *sessionRepo) GetByID(ctx context.Context, id model.SessionID) (model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	var s model.Session
	var idStr string
	var boxID int
	var stopReason, token sql.NullString
	err := r.db.QueryRowContext(ctx, query, id.UUID()).Scan(
		&idStr,
		&boxID,
		&s.CreatedAt,
		&s.InitState,
		&s.WelcomeState,
		&s.RecordingState,
		&s.ConfirmationState,
		&s.ConfirmationAnswer,
		&s.TokenPromptState,
		&s.NoTokenPromptState,
		&s.ThankYouPromptState,
		&s.QuestionnaireShareState,
		&s.QuestionnaireNoShareState,
		&s.IdleState,
		&s.AudioErrorState,
		&s.ReplayCount,
		&s.RecordingLength,
		&stopReason,
		&token,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Session{}, fmt.Errorf("session not found: %w", err)
		}
		return model.Session{}, fmt.Errorf("failed to query session: %w", err)
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to parse session ID: %w", err)
	}
	s.ID = model.SessionID(parsed)
	s.BoxID = model.BoxID(boxID)
	if stopReason.Valid {
		reason := model.RecordingStopReason(stopReason.String)
		s.RecordStopReason = &reason
	}
	if token.Valid {
		t := model.ParticipationToken(token.String)
		s.Token = &t
	}
	return s, nil
}

// Apply writes a single SessionUpdate. Column names come only from the fixed mapping above.
func (r *sessionRepo) Apply(ctx context.Context, id model.SessionID, u SessionUpdate) error {
	if u.column == "" {
		return fmt.Errorf("unknown session update %q", u.name)
	}
	query := fmt.Sprintf(`UPDATE sessions SET %s = %s WHERE id = $1`, u.column, u.expr)
	args := []interface{}{id.UUID()}
	if u.arg != nil {
		args = append(args, u.arg)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update session %s: %w", u.name, err)
	}
	return nil
}

// BindToken records the token issued during this session.
func (r *sessionRepo) BindToken(ctx context.Context, id model.SessionID, token model.ParticipationToken) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET token = $2 WHERE id = $1
	`, id.UUID(), string(token))
	if err != nil {
		return fmt.Errorf("bind token to session: %w", err)
	}
	return nil
}
