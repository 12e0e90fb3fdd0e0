package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required"`
	Port           string `env:"PORT,default=8080"`
	DevMode        bool   `env:"DEV_MODE,default=false"`
	DataDir        string `env:"DATA_DIR,default=data"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=25"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,default=67108864"`

	// BoxJWTSecret enables bearer authentication of box routes when set.
	BoxJWTSecret string `env:"BOX_JWT_SECRET"`

	Twilio    TwilioConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
}

// TwilioConfig selects the SMS notifier. All three values must be set together.
type TwilioConfig struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber string `env:"TWILIO_FROM_NUMBER"`
}

// Enabled reports whether Twilio credentials are configured.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// RetryScheduleOff disables the delivery recovery sweep when given as
// NOTIFY_RETRY_SCHEDULE. An empty value falls back to the default schedule.
const RetryScheduleOff = "off"

// NotifyConfig tunes the notification dispatcher.
type NotifyConfig struct {
	Workers       int           `env:"NOTIFY_WORKERS,default=2"`
	QueueSize     int           `env:"NOTIFY_QUEUE_SIZE,default=100"`
	MaxAttempts   int           `env:"NOTIFY_MAX_ATTEMPTS,default=5"`
	RetrySchedule string        `env:"NOTIFY_RETRY_SCHEDULE,default=@every 5m"`
	RetryAfter    time.Duration `env:"NOTIFY_RETRY_AFTER,default=1m"`
}

// RateLimitConfig bounds requests per client IP on box routes.
type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS,default=10"`
	Burst int     `env:"RATE_LIMIT_BURST,default=20"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Notify.RetrySchedule), RetryScheduleOff) {
		cfg.Notify.RetrySchedule = ""
	}

	t := cfg.Twilio
	if !t.Enabled() && (t.AccountSID != "" || t.AuthToken != "" || t.FromNumber != "") {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER must be set together")
	}
	if cfg.DBMaxOpenConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	if cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return &cfg, nil
}
