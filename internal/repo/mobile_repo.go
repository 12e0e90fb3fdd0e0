package repo

import (
	"context"
	"fmt"

	"github.com/speechbox/server/internal/model"
)

// advisoryLockMobiles is the first key of the advisory lock that serialises
// submissions of the same number.
const advisoryLockMobiles = 2

// MobileRepo defines the interface for mobile repository operations
type MobileRepo interface {
	LockNumber(ctx context.Context, number model.MobileNumber) error
	ExistsByNumber(ctx context.Context, number model.MobileNumber) (bool, error)
	Create(ctx context.Context, m model.Mobile) (model.Mobile, error)
}

type mobileRepo struct {
	db Querier
}

// NewMobileRepo creates a new MobileRepo instance
func NewMobileRepo(db Querier) MobileRepo {
	return &mobileRepo{db: db}
}

// LockNumber blocks until this transaction holds the lock for number.
// Released on COMMIT/ROLLBACK; only meaningful when db is a *sql.Tx.
func (r *mobileRepo) LockNumber(ctx context.Context, number model.MobileNumber) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, advisoryLockMobiles, string(number))
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// ExistsByNumber reports whether any mobile row, from any box or session, carries number.
func (r *mobileRepo) ExistsByNumber(ctx context.Context, number model.MobileNumber) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM mobiles WHERE number = $1)
	`, string(number)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate mobile: %w", err)
	}
	return exists, nil
}

// Create inserts a mobile row and returns it with its generated id.
func (r *mobileRepo) Create(ctx context.Context, m model.Mobile) (model.Mobile, error) {
	var id int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO mobiles (session_id, box_id, number, network, created_at, duplicate, payment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, m.SessionID.UUID(), int(m.BoxID), string(m.Number), m.Network, m.CreatedAt, m.Duplicate, m.Payment).Scan(&id)
	if err != nil {
		return model.Mobile{}, fmt.Errorf("failed to create mobile: %w", err)
	}
	m.ID = model.MobileID(id)
	return m, nil
}
