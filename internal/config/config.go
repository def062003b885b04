// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken  string
	PollInterval time.Duration `validate:"min=10s"`
	ListenAddr   string        `validate:"required,hostname_port"`
	DBPath       string        `validate:"required"`
	CommitWindow int           `validate:"min=1,max=100"`
	WebhookURL   string        `validate:"omitempty,url"`
}

// Load reads configuration from environment variables and returns a validated
// Config. GITWATCH_GITHUB_TOKEN is optional (unauthenticated polling works at
// a lower rate limit). Optional variables with defaults:
// GITWATCH_POLL_INTERVAL (5m), GITWATCH_LISTEN_ADDR (127.0.0.1:8080),
// GITWATCH_DB_PATH (gitwatch.db), GITWATCH_COMMIT_WINDOW (10).
// GITWATCH_WEBHOOK_URL selects webhook delivery; without it events are only
// logged.
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:  os.Getenv("GITWATCH_GITHUB_TOKEN"),
		PollInterval: 5 * time.Minute,
		ListenAddr:   "127.0.0.1:8080",
		DBPath:       "gitwatch.db",
		CommitWindow: 10,
		WebhookURL:   os.Getenv("GITWATCH_WEBHOOK_URL"),
	}

	if v, ok := os.LookupEnv("GITWATCH_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GITWATCH_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		cfg.PollInterval = parsed
	}

	if v, ok := os.LookupEnv("GITWATCH_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("GITWATCH_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("GITWATCH_COMMIT_WINDOW"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("GITWATCH_COMMIT_WINDOW has invalid value %q: %w", v, err)
		}
		cfg.CommitWindow = parsed
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
