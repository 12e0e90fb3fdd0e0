package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/speechbox/server/internal/model"
	"go.uber.org/zap"
)

// StatusHandler serves the dashboard aggregates as JSON
type StatusHandler struct {
	svc    Service
	logger *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(svc Service, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{svc: svc, logger: logger}
}

type boxStatus struct {
	ID          int        `json:"id"`
	Description string     `json:"description"`
	CountryCode string     `json:"country_code"`
	Timezone    string     `json:"timezone"`
	LastSeen    *time.Time `json:"last_seen"`
	NumStories  int        `json:"num_stories"`
	LatestStory *time.Time `json:"latest_story"`
}

type dayCount struct {
	Date    string `json:"date"`
	Stories int    `json:"stories"`
}

type statusResponse struct {
	Boxes           []boxStatus `json:"boxes"`
	Duplicates      int         `json:"duplicates"`
	Unpaid          int         `json:"unpaid"`
	TokensAvailable int         `json:"tokens_available"`
	StoriesByDate   []dayCount  `json:"stories_by_date"`
}

func newStatusResponse(st model.Status) statusResponse {
	resp := statusResponse{
		Boxes:           make([]boxStatus, 0, len(st.Boxes)),
		Duplicates:      st.Duplicates,
		Unpaid:          st.Unpaid,
		TokensAvailable: st.TokensAvailable,
		StoriesByDate:   make([]dayCount, 0, len(st.StoriesByDate)),
	}
	for _, b := range st.Boxes {
		resp.Boxes = append(resp.Boxes, boxStatus{
			ID:          int(b.ID),
			Description: b.Description,
			CountryCode: b.CountryCode,
			Timezone:    b.Timezone,
			LastSeen:    b.LastSeen,
			NumStories:  b.NumStories,
			LatestStory: b.LatestStory,
		})
	}
	for _, d := range st.StoriesByDate {
		resp.StoriesByDate = append(resp.StoriesByDate, dayCount{
			Date:    d.Date.Format("2006-01-02"),
			Stories: d.NumStories,
		})
	}
	return resp
}

// ServeHTTP handles GET /status
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newStatusResponse(st)); err != nil {
		h.logger.Warn("failed to encode status response", zap.Error(err))
	}
}
