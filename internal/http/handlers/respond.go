package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/speechbox/server/internal/model"
	"github.com/speechbox/server/internal/speechbox"
	"go.uber.org/zap"
)

// maxJSONBody bounds the small JSON bodies the boxes post.
const maxJSONBody = 64 << 10

// Service is the part of speechbox.Service the handlers depend on
type Service interface {
	GetBox(ctx context.Context, boxID model.BoxID) (model.Box, error)
	PingFromBox(ctx context.Context, boxID model.BoxID) (time.Time, error)
	SetState(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, state model.SessionState) (model.Session, error)
	IncreaseReplayCount(ctx context.Context, boxID model.BoxID, sessionID model.SessionID) (model.Session, error)
	SetConfirmationAnswer(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, answer int) (model.Session, error)
	SetRecordStopReason(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, reason model.RecordingStopReason) (model.Session, error)
	SetRecordingLength(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, ms int64) (model.Session, error)
	CreateStory(ctx context.Context, boxID model.BoxID, sessionID model.SessionID) (model.Story, error)
	CreateMobileInfo(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, number model.MobileNumber, network string) (model.Mobile, error)
	IssueToken(ctx context.Context, boxID model.BoxID, sessionID model.SessionID, number model.MobileNumber) (model.ParticipationToken, error)
	GetStory(ctx context.Context, storyID model.StoryID) (model.Story, error)
	AddAudio(ctx context.Context, storyID model.StoryID, filename string) (model.Story, error)
	Status(ctx context.Context) (model.Status, error)
}

var _ Service = (*speechbox.Service)(nil)

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondJSON sends v as a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// respondServiceError maps a speechbox error to its HTTP status. Storage failures
// get a generic message; the cause was already logged by the service.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	switch speechbox.KindOf(err) {
	case speechbox.KindNotFound:
		respondWithError(w, http.StatusNotFound, err.Error())
	case speechbox.KindPoolExhausted:
		respondWithError(w, http.StatusGone, err.Error())
	case speechbox.KindValidation:
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Debug("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, speechbox.ErrStorage.Error())
	}
}

// decodeJSON reads a single JSON value from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}
