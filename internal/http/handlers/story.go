package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/speechbox/server/internal/middleware"
	"github.com/speechbox/server/internal/model"
	"go.uber.org/zap"
)

// maxUploadMemory is how much of a multipart upload is buffered in memory before spilling to disk.
const maxUploadMemory = 32 << 20

// DefaultMaxUploadBytes bounds an upload request body when no limit is configured.
const DefaultMaxUploadBytes int64 = 64 << 20

var extensionPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

// StoryHandler handles story lookup and audio upload
type StoryHandler struct {
	svc       Service
	dataDir   string
	maxUpload int64
	logger    *zap.Logger
}

// NewStoryHandler creates a new story handler writing uploads under dataDir.
// Request bodies larger than maxUpload bytes are rejected with 413.
func NewStoryHandler(svc Service, dataDir string, maxUpload int64, logger *zap.Logger) *StoryHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &StoryHandler{svc: svc, dataDir: dataDir, maxUpload: maxUpload, logger: logger}
}

// story loads the story named by {storyId}. When device authentication is on,
// the story must belong to the authenticated box.
func (h *StoryHandler) story(w http.ResponseWriter, r *http.Request) (model.Story, bool) {
	storyID, err := model.ParseStoryID(chi.URLParam(r, "storyId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid story id")
		return model.Story{}, false
	}
	story, err := h.svc.GetStory(r.Context(), storyID)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return model.Story{}, false
	}
	if boxID, ok := middleware.GetBoxID(r.Context()); ok && boxID != story.BoxID {
		respondWithError(w, http.StatusForbidden, "story belongs to another box")
		return model.Story{}, false
	}
	return story, true
}

// HandleGetStory handles GET /story/{storyId}
func (h *StoryHandler) HandleGetStory(w http.ResponseWriter, r *http.Request) {
	story, ok := h.story(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, int(story.ID))
}

// HandleUpload handles POST /story/{storyId}/file. The multipart body carries the
// audio in a "file" part and its extension in an "extension" field; the audio is
// stored as <sessionId>.<extension>.
func (h *StoryHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUpload {
		respondWithError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	story, ok := h.story(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "request file missing")
		return
	}
	defer file.Close()

	extension := strings.TrimLeft(r.FormValue("extension"), ".")
	if extension == "" {
		respondWithError(w, http.StatusBadRequest, "extension missing")
		return
	}
	if !extensionPattern.MatchString(extension) {
		respondWithError(w, http.StatusBadRequest, "invalid extension")
		return
	}

	filename := story.SessionID.String() + "." + extension
	if err := h.writeFile(filename, file); err != nil {
		h.logger.Error("failed to store audio", zap.String("file", filename), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	story, err = h.svc.AddAudio(r.Context(), story.ID, filename)
	if err != nil {
		respondServiceError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, int(story.ID))
}

// writeFile copies src to dataDir/name via a temporary file so readers never see a partial upload.
func (h *StoryHandler) writeFile(name string, src io.Reader) error {
	tmp, err := os.CreateTemp(h.dataDir, name+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(h.dataDir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename upload: %w", err)
	}
	return nil
}
