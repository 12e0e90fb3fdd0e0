package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/speechbox/server/internal/auth"
	"github.com/speechbox/server/internal/http/handlers"
	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/metrics"
	"github.com/speechbox/server/internal/middleware"
	"go.uber.org/zap"
)

// RouterConfig wires the router's collaborators
type RouterConfig struct {
	Service handlers.Service
	DataDir string
	Logger  *zap.Logger
	// JWTService enables device authentication on /box routes when non-nil.
	JWTService *auth.JWTService
	// RateLimiter throttles /box and /story routes per client IP when non-nil.
	RateLimiter *middleware.RateLimiter
	// MaxUploadBytes bounds audio upload bodies; zero selects the handler default.
	MaxUploadBytes int64
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.RequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/status", handlers.NewStatusHandler(cfg.Service, cfg.Logger).ServeHTTP)

	boxHandler := handlers.NewBoxHandler(cfg.Service, cfg.DataDir, cfg.Logger)
	sessionHandler := handlers.NewSessionHandler(cfg.Service, cfg.Logger)
	storyHandler := handlers.NewStoryHandler(cfg.Service, cfg.DataDir, cfg.MaxUploadBytes, cfg.Logger)

	r.Route("/box/{boxId}", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimiter, middleware.GetIPKey))
		}
		if cfg.JWTService != nil {
			r.Use(middleware.BoxAuth(cfg.JWTService))
		}

		r.Get("/", boxHandler.HandleGetBox)
		r.Post("/ping", boxHandler.HandlePing)

		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Post("/{state}", sessionHandler.HandleState)
			r.Post("/replay", sessionHandler.HandleReplay)
			r.Post("/confirmationAnswer", sessionHandler.HandleConfirmationAnswer)
			r.Post("/recordStopReason", sessionHandler.HandleRecordStopReason)
			r.Post("/recordingLength", sessionHandler.HandleRecordingLength)
			r.Post("/story", sessionHandler.HandleCreateStory)
			r.Post("/mobile", sessionHandler.HandleMobile)
			r.Post("/token", sessionHandler.HandleToken)
		})
	})

	r.Route("/story/{storyId}", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimiter, middleware.GetIPKey))
		}
		if cfg.JWTService != nil {
			r.Use(middleware.DeviceAuth(cfg.JWTService))
		}
		r.Get("/", storyHandler.HandleGetStory)
		r.Post("/file", storyHandler.HandleUpload)
	})

	return r
}
