package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/speechbox/server/internal/model"
	"go.uber.org/zap"
)

// BoxHandler handles box-level endpoints
type BoxHandler struct {
	svc     Service
	dataDir string
	logger  *zap.Logger
}

// NewBoxHandler creates a new box handler. Ping timestamps are appended to
// box-<id>.log under dataDir.
func NewBoxHandler(svc Service, dataDir string, logger *zap.Logger) *BoxHandler {
	return &BoxHandler{svc: svc, dataDir: dataDir, logger: logger}
}

// HandleGetBox handles GET /box/{boxId}
func (h *BoxHandler) HandleGetBox(w http.ResponseWriter, r *http.Request) {
	boxID, err := model.ParseBoxID(chi.URLParam(r, "boxId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid box id")
		return
	}

	box, err := h.svc.GetBox(r.Context(), boxID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, int(box.ID))
}

// HandlePing handles POST /box/{boxId}/ping
func (h *BoxHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	boxID, err := model.ParseBoxID(chi.URLParam(r, "boxId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid box id")
		return
	}

	seen, err := h.svc.PingFromBox(r.Context(), boxID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	go h.appendPingLog(boxID, seen)
	respondJSON(w, http.StatusOK, seen)
}

func (h *BoxHandler) appendPingLog(boxID model.BoxID, at time.Time) {
	path := filepath.Join(h.dataDir, fmt.Sprintf("box-%d.log", boxID))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		h.logger.Warn("failed to open box log", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, at.Format(time.RFC3339Nano)); err != nil {
		h.logger.Warn("failed to append box log", zap.String("path", path), zap.Error(err))
	}
}
