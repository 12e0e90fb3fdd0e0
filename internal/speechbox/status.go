package speechbox

import (
	"context"

	"github.com/speechbox/server/internal/model"
)

// Status collects the dashboard aggregates. It has no write side effects.
func (s *Service) Status(ctx context.Context) (model.Status, error) {
	var (
		st  model.Status
		err error
	)
	if st.Boxes, err = s.status.ListBoxes(ctx); err != nil {
		return model.Status{}, s.classify("status", err)
	}
	if st.Duplicates, err = s.status.CountDuplicateMobiles(ctx); err != nil {
		return model.Status{}, s.classify("status", err)
	}
	if st.Unpaid, err = s.status.CountUnpaidMobiles(ctx); err != nil {
		return model.Status{}, s.classify("status", err)
	}
	if st.TokensAvailable, err = s.status.CountAvailableTokens(ctx); err != nil {
		return model.Status{}, s.classify("status", err)
	}
	if st.StoriesByDate, err = s.status.StoriesByDate(ctx); err != nil {
		return model.Status{}, s.classify("status", err)
	}
	return st, nil
}
