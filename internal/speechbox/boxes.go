package speechbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/repo"
)

// GetBox returns the box with the given id.
func (s *Service) GetBox(ctx context.Context, boxID model.BoxID) (model.Box, error) {
	box, err := repo.NewBoxRepo(s.db).GetByID(ctx, boxID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Box{}, ErrBoxNotFound
		}
		return model.Box{}, s.classify("get box", err)
	}
	return box, nil
}

// PingFromBox stamps the box as seen now and returns the timestamp.
func (s *Service) PingFromBox(ctx context.Context, boxID model.BoxID) (time.Time, error) {
	now := s.now()
	if err := repo.NewBoxRepo(s.db).SetLastSeen(ctx, boxID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrBoxNotFound
		}
		return time.Time{}, s.classify("ping from box", err)
	}
	return now, nil
}

// ProvisionBoxes inserts or updates the given boxes in one transaction.
func (s *Service) ProvisionBoxes(ctx context.Context, boxes []model.Box) error {
	for _, b := range boxes {
		if b.ID <= 0 || b.CountryCode == "" {
			return fmt.Errorf("box %d: id and country code are required: %w", b.ID, ErrInvalidInput)
		}
	}
	return s.inTx(ctx, "provision boxes", func(tx *sql.Tx) error {
		r := repo.NewBoxRepo(tx)
		for _, b := range boxes {
			if err := r.Upsert(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportTokens adds pre-generated tokens to the pool and returns how many were new.
func (s *Service) ImportTokens(ctx context.Context, tokens []model.ParticipationToken) (int, error) {
	var inserted int
	err := s.inTx(ctx, "import tokens", func(tx *sql.Tx) error {
		var err error
		inserted, err = repo.NewTokenRepo(tx).Import(ctx, tokens)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
