package speechbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/repo"
)

// CreateStory ensures the session exists and inserts a new story for it.
// Every call creates a new story.
func (s *Service) CreateStory(ctx context.Context, boxID model.BoxID, sessionID model.SessionID) (model.Story, error) {
	var story model.Story
	err := s.inTx(ctx, "create story", func(tx *sql.Tx) error {
		now := s.now()
		if _, err := repo.NewSessionRepo(tx).GetOrCreate(ctx, boxID, sessionID, now); err != nil {
			return err
		}
		var err error
		story, err = repo.NewStoryRepo(tx).Create(ctx, boxID, sessionID, now)
		return err
	})
	if err != nil {
		return model.Story{}, err
	}
	return story, nil
}

// AddAudio records the name of the uploaded audio file on the story.
func (s *Service) AddAudio(ctx context.Context, storyID model.StoryID, filename string) (model.Story, error) {
	if strings.TrimSpace(filename) == "" {
		return model.Story{}, fmt.Errorf("audio filename: %w", ErrInvalidInput)
	}
	var story model.Story
	err := s.inTx(ctx, "add audio", func(tx *sql.Tx) error {
		stories := repo.NewStoryRepo(tx)
		if err := stories.SetAudio(ctx, storyID, filename, s.now()); err != nil {
			return err
		}
		var err error
		story, err = stories.GetByID(ctx, storyID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStoryNotFound
		}
		return err
	})
	if err != nil {
		return model.Story{}, err
	}
	return story, nil
}

// GetStory returns the story with the given id.
func (s *Service) GetStory(ctx context.Context, storyID model.StoryID) (model.Story, error) {
	story, err := repo.NewStoryRepo(s.db).GetByID(ctx, storyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Story{}, ErrStoryNotFound
		}
		return model.Story{}, s.classify("get story", err)
	}
	return story, nil
}
