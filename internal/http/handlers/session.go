package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/speechbox/server/internal/model"
	"go.uber.org/zap"
)

// SessionHandler handles the per-session endpoints a box posts during an interaction
type SessionHandler struct {
	svc    Service
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc Service, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, logger: logger}
}

// mobileRequest is the request body for POST .../mobile
type mobileRequest struct {
	Number  string `json:"number"`
	Network string `json:"network"`
}

// sessionParams reads {boxId} and {sessionId}, writing a 400 on failure.
func sessionParams(w http.ResponseWriter, r *http.Request) (model.BoxID, model.SessionID, bool) {
	boxID, err := model.ParseBoxID(chi.URLParam(r, "boxId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid box id")
		return 0, model.SessionID{}, false
	}
	sessionID, err := model.ParseSessionID(chi.URLParam(r, "sessionId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid session id")
		return 0, model.SessionID{}, false
	}
	return boxID, sessionID, true
}

func (h *SessionHandler) respondSession(w http.ResponseWriter, r *http.Request, session model.Session, err error) {
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session.ID.String())
}

// HandleState handles POST .../{state} for the UI states; unknown names are 404
func (h *SessionHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	state, err := model.ParseSessionState(chi.URLParam(r, "state"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	session, err := h.svc.SetState(r.Context(), boxID, sessionID, state)
	h.respondSession(w, r, session, err)
}

// HandleReplay handles POST .../replay
func (h *SessionHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	session, err := h.svc.IncreaseReplayCount(r.Context(), boxID, sessionID)
	h.respondSession(w, r, session, err)
}

// HandleConfirmationAnswer handles POST .../confirmationAnswer with a JSON integer body
func (h *SessionHandler) HandleConfirmationAnswer(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var answer *int
	if err := decodeJSON(w, r, &answer); err != nil || answer == nil {
		respondWithError(w, http.StatusBadRequest, "confirmation answer is required")
		return
	}
	session, err := h.svc.SetConfirmationAnswer(r.Context(), boxID, sessionID, *answer)
	h.respondSession(w, r, session, err)
}

// HandleRecordStopReason handles POST .../recordStopReason with a JSON string body
func (h *SessionHandler) HandleRecordStopReason(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var raw string
	if err := decodeJSON(w, r, &raw); err != nil {
		respondWithError(w, http.StatusBadRequest, "recording stop reason is required")
		return
	}
	reason, err := model.ParseRecordingStopReason(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "recording stop reason is required")
		return
	}
	session, err := h.svc.SetRecordStopReason(r.Context(), boxID, sessionID, reason)
	h.respondSession(w, r, session, err)
}

// HandleRecordingLength handles POST .../recordingLength with a JSON integer body (milliseconds)
func (h *SessionHandler) HandleRecordingLength(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var ms *int64
	if err := decodeJSON(w, r, &ms); err != nil || ms == nil {
		respondWithError(w, http.StatusBadRequest, "recording length is required")
		return
	}
	session, err := h.svc.SetRecordingLength(r.Context(), boxID, sessionID, *ms)
	h.respondSession(w, r, session, err)
}

// HandleCreateStory handles POST .../story
func (h *SessionHandler) HandleCreateStory(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	story, err := h.svc.CreateStory(r.Context(), boxID, sessionID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, int(story.ID))
}

// HandleMobile handles POST .../mobile
func (h *SessionHandler) HandleMobile(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var req mobileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	number, err := model.ParseMobileNumber(req.Number)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid mobile number")
		return
	}

	mobile, err := h.svc.CreateMobileInfo(r.Context(), boxID, sessionID, number, strings.TrimSpace(req.Network))
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, int(mobile.ID))
}

// HandleToken handles POST .../token with the mobile number as a JSON string body
func (h *SessionHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	boxID, sessionID, ok := sessionParams(w, r)
	if !ok {
		return
	}
	var raw string
	if err := decodeJSON(w, r, &raw); err != nil {
		respondWithError(w, http.StatusBadRequest, "mobile number is required")
		return
	}
	number, err := model.ParseMobileNumber(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid mobile number")
		return
	}

	token, err := h.svc.IssueToken(r.Context(), boxID, sessionID, number)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, token.String())
}
