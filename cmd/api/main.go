package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/speechbox/server/internal/auth"
	"github.com/speechbox/server/internal/config"
	"github.com/speechbox/server/internal/db"
	httphandler "github.com/speechbox/server/internal/http"
	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/middleware"
	"github.com/speechbox/server/internal/notify"
	"github.com/speechbox/server/internal/repo"
	"github.com/speechbox/server/internal/speechbox"
	"go.uber.org/zap"
)

func main() {
	// Env vars override .env
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.DevMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxOpenConns: cfg.DBMaxOpenConns}, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database, logger); err != nil {
		return err
	}

	var notifier notify.Notifier
	if cfg.Twilio.Enabled() {
		notifier = notify.NewTwilioNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
		logger.Info("sms notifications via twilio")
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Warn("twilio not configured, tokens will only be logged")
	}

	dispatcher, err := notify.NewDispatcher(notifier, repo.NewDeliveryRepo(database), notify.Options{
		Workers:       cfg.Notify.Workers,
		QueueSize:     cfg.Notify.QueueSize,
		MaxAttempts:   cfg.Notify.MaxAttempts,
		RetrySchedule: cfg.Notify.RetrySchedule,
		RetryAfter:    cfg.Notify.RetryAfter,
	}, logger)
	if err != nil {
		return err
	}
	dispatcher.Start()

	svc := speechbox.NewService(database, dispatcher, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
	defer limiter.Close()

	routerCfg := httphandler.RouterConfig{
		Service:        svc,
		DataDir:        cfg.DataDir,
		Logger:         logger,
		RateLimiter:    limiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if cfg.BoxJWTSecret != "" {
		routerCfg.JWTService = auth.NewJWTService(cfg.BoxJWTSecret)
		logger.Info("box authentication enabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httphandler.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("notification dispatcher did not drain", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}
