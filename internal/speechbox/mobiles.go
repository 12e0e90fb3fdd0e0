package speechbox

import (
	"context"
	"database/sql"

	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/repo"
	"go.uber.org/zap"
)

// CreateMobileInfo records a submitted number for the session. A number that was
// submitted before, from any box or session, is stored as a non-payable duplicate.
func (s *Service) CreateMobileInfo(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, number model.MobileNumber, network string) (model.Mobile, error) {
	var mobile model.Mobile
	err := s.inTx(ctx, "create mobile info", func(tx *sql.Tx) error {
		now := s.now()
		if _, err := repo.NewSessionRepo(tx).GetOrCreate(ctx, boxID, sessionID, now); err != nil {
			return err
		}

		mobiles := repo.NewMobileRepo(tx)
		// Held until commit so a concurrent submission of the same number sees this row.
		if err := mobiles.LockNumber(ctx, number); err != nil {
			return err
		}
		duplicate, err := mobiles.ExistsByNumber(ctx, number)
		if err != nil {
			return err
		}

		payment := model.PaymentPending
		if duplicate {
			payment = model.PaymentNotPayable
		}
		mobile, err = mobiles.Create(ctx, model.Mobile{
			SessionID: sessionID,
			BoxID:     boxID,
			Number:    number,
			Network:   network,
			CreatedAt: now,
			Duplicate: duplicate,
			Payment:   payment,
		})
		return err
	})
	if err != nil {
		return model.Mobile{}, err
	}

	if mobile.Duplicate {
		s.logger.Info("duplicate mobile submitted",
			zap.Int("box_id", int(boxID)),
			zap.String("session_id", sessionID.String()),
			logging.Phone("number", number.String()),
		)
	}
	return mobile, nil
}
