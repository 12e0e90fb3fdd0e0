package speechbox

import (
	"context"
	"database/sql"
	"errors"

	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/metrics"
	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/repo"
	"go.uber.org/zap"
)

// IssueToken claims one unissued token from the pool and binds it to the session
// and its latest story. Unless number is the test number, an outbox delivery is
// written in the same transaction and handed to the dispatcher after commit.
// Notification failures never reach the caller.
func (s *Service) IssueToken(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, number model.MobileNumber) (model.ParticipationToken, error) {
	var (
		token    model.ParticipationToken
		delivery *model.Delivery
		rebound  bool
	)
	err := s.inTx(ctx, "issue token", func(tx *sql.Tx) error {
		now := s.now()
		delivery = nil

		var err error
		token, err = repo.NewTokenRepo(tx).ClaimNext(ctx, now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoTokensLeft
			}
			return err
		}

		if _, err := repo.NewStoryRepo(tx).BindTokenToLatest(ctx, sessionID, token); err != nil {
			return err
		}

		sessions := repo.NewSessionRepo(tx)
		session, err := sessions.GetOrCreate(ctx, boxID, sessionID, now)
		if err != nil {
			return err
		}
		rebound = session.Token != nil
		if err := sessions.BindToken(ctx, sessionID, token); err != nil {
			return err
		}

		box, err := repo.NewBoxRepo(tx).GetByID(ctx, boxID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBoxNotFound
			}
			return err
		}

		if number.IsTest() {
			return nil
		}
		recipient := number.WithCountryCode(box.CountryCode)
		if err := repo.NewDeliveryRepo(tx).Create(ctx, token, recipient, now); err != nil {
			return err
		}
		delivery = &model.Delivery{Token: token, Recipient: recipient, CreatedAt: now}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoTokensLeft) {
			metrics.RecordPoolExhausted()
			s.logger.Warn("token pool exhausted", zap.Int("box_id", int(boxID)), zap.String("session_id", sessionID.String()))
		}
		return "", err
	}

	metrics.RecordTokenIssued()
	if rebound {
		s.logger.Warn("issued another token to a session that already had one",
			zap.String("session_id", sessionID.String()),
			zap.String("token", token.String()),
		)
	}
	if delivery != nil {
		s.dispatcher.Enqueue(*delivery)
	} else {
		s.logger.Info("test number, skipping notification", zap.String("token", token.String()))
	}
	s.logger.Info("token issued",
		zap.Int("box_id", int(boxID)),
		zap.String("session_id", sessionID.String()),
		logging.Phone("number", number.String()),
	)
	return token, nil
}
