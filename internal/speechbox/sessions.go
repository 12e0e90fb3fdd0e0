package speechbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/speechbox/server/internal/metrics"
	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/repo"
	"go.uber.org/zap"
)

// GetOrCreateSession returns the session, creating it for boxID on first sight.
// Safe under concurrent calls for the same new id: exactly one row results.
func (s *Service) GetOrCreateSession(ctx context.Context, boxID model.BoxID, sessionID model.SessionID) (model.Session, error) {
	var session model.Session
	err := s.inTx(ctx, "get or create session", func(tx *sql.Tx) error {
		var err error
		session, err = repo.NewSessionRepo(tx).GetOrCreate(ctx, boxID, sessionID, s.now())
		return err
	})
	if err != nil {
		return model.Session{}, err
	}
	return session, nil
}

// UpdateSession ensures the session exists, applies u and returns the refreshed row.
// Updates are last-write-wins per column; no ordering between states is enforced.
func (s *Service) UpdateSession(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, u repo.SessionUpdate) (model.Session, error) {
	var session model.Session
	err := s.inTx(ctx, "update session "+u.Name(), func(tx *sql.Tx) error {
		sessions := repo.NewSessionRepo(tx)
		if _, err := sessions.GetOrCreate(ctx, boxID, sessionID, s.now()); err != nil {
			return err
		}
		if err := sessions.Apply(ctx, sessionID, u); err != nil {
			return err
		}
		var err error
		session, err = sessions.GetByID(ctx, sessionID)
		return err
	})
	if err != nil {
		return model.Session{}, err
	}
	metrics.RecordSessionUpdate(u.Name())
	return session, nil
}

// SetState stamps the given UI state with the current time.
func (s *Service) SetState(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, state model.SessionState) (model.Session, error) {
	if !state.Valid() {
		return model.Session{}, fmt.Errorf("session state %d: %w", int(state), ErrInvalidInput)
	}
	session, err := s.UpdateSession(ctx, boxID, sessionID, repo.StateUpdate(state, s.now()))
	if err != nil {
		return model.Session{}, err
	}
	s.logger.Debug("session state recorded",
		zap.Stringer("session_id", sessionID),
		zap.String("state", state.String()),
		zap.Timep("at", session.StateAt(state)))
	return session, nil
}

// SetConfirmationAnswer stores the participant's answer to the confirmation prompt.
func (s *Service) SetConfirmationAnswer(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, answer int) (model.Session, error) {
	return s.UpdateSession(ctx, boxID, sessionID, repo.ConfirmationAnswerUpdate(answer))
}

// SetRecordingLength stores the recording length in milliseconds.
func (s *Service) SetRecordingLength(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, ms int64) (model.Session, error) {
	if ms < 0 {
		return model.Session{}, fmt.Errorf("recording length %d: %w", ms, ErrInvalidInput)
	}
	return s.UpdateSession(ctx, boxID, sessionID, repo.RecordingLengthUpdate(ms))
}

// SetRecordStopReason stores why the box stopped recording.
func (s *Service) SetRecordStopReason(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, reason model.RecordingStopReason) (model.Session, error) {
	if reason == "" {
		return model.Session{}, fmt.Errorf("recording stop reason: %w", ErrInvalidInput)
	}
	return s.UpdateSession(ctx, boxID, sessionID, repo.RecordStopReasonUpdate(reason))
}

// IncreaseReplayCount counts one more playback of the recording.
func (s *Service) IncreaseReplayCount(ctx context.Context, boxID model.BoxID, sessionID model.SessionID) (model.Session, error) {
	return s.UpdateSession(ctx, boxID, sessionID, repo.ReplayIncrement())
}
