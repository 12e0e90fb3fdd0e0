// Package speechbox manages sessions, stories, mobile registrations and token
// issuance for the recording boxes. Every mutating operation runs in exactly one
// database transaction; notifications are handed off only after commit.
package speechbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/speechbox/server/internal/db"
	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/repo"
	"go.uber.org/zap"
)

// Dispatcher accepts committed deliveries for asynchronous notification.
// Enqueue must not block.
type Dispatcher interface {
	Enqueue(d model.Delivery)
}

// Service is the session/story/token transaction manager.
type Service struct {
	db         *sql.DB
	status     repo.StatusRepo
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new Service
func NewService(database *sql.DB, dispatcher Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		db:         database,
		status:     repo.NewStatusRepo(database),
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// inTx runs fn in one transaction and reduces any failure to a domain error or a StorageError.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	err := db.WithTx(ctx, s.db, fn)
	if err == nil {
		return nil
	}
	return s.classify(op, err)
}

func (s *Service) classify(op string, err error) error {
	if isDomainError(err) {
		return err
	}
	// Sessions, stories and mobiles all reference boxes; the box is the only parent
	// a device can name that may not exist.
	if db.IsForeignKeyViolation(err) {
		return ErrBoxNotFound
	}
	s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
	return &StorageError{Op: op, Err: err}
}
