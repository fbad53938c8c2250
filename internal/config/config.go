package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDBPath          = "data/mealsync.db"
	defaultHTTPAddr        = ":8080"
	defaultRetentionDays   = 30
	defaultCleanupSchedule = "@daily"
)

// Week anchor modes for list regeneration.
const (
	WeekAnchorToday = "today"
	WeekAnchorEvent = "event"
)

// Config holds the configuration for the sync service.
type Config struct {
	APIURL     string
	APIToken   string
	APITimeout time.Duration

	DatabasePath string
	HTTPAddr     string

	WeekAnchor      string
	ManualMarkers   []string
	RetentionDays   int
	CleanupSchedule string

	// Telegram observer (optional)
	TelegramBotToken string
	TelegramChatID   int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	apiURL := os.Getenv("MEALSYNC_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("MEALSYNC_API_URL environment variable not set")
	}

	cfg := &Config{
		APIURL:           strings.TrimRight(apiURL, "/"),
		APIToken:         os.Getenv("MEALSYNC_API_TOKEN"),
		DatabasePath:     envOr("MEALSYNC_DB_PATH", defaultDBPath),
		HTTPAddr:         envOr("MEALSYNC_HTTP_ADDR", defaultHTTPAddr),
		WeekAnchor:       envOr("MEALSYNC_WEEK_ANCHOR", WeekAnchorToday),
		RetentionDays:    defaultRetentionDays,
		CleanupSchedule:  envOr("MEALSYNC_CLEANUP_SCHEDULE", defaultCleanupSchedule),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.WeekAnchor != WeekAnchorToday && cfg.WeekAnchor != WeekAnchorEvent {
		return nil, fmt.Errorf("MEALSYNC_WEEK_ANCHOR must be %q or %q, got %q", WeekAnchorToday, WeekAnchorEvent, cfg.WeekAnchor)
	}

	if v := os.Getenv("MEALSYNC_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MEALSYNC_API_TIMEOUT: %w", err)
		}
		cfg.APITimeout = d
	}

	if v := os.Getenv("MEALSYNC_MANUAL_MARKERS"); v != "" {
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.ManualMarkers = append(cfg.ManualMarkers, m)
			}
		}
	}

	if v := os.Getenv("MEALSYNC_HISTORY_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid MEALSYNC_HISTORY_RETENTION_DAYS: %q", v)
		}
		cfg.RetentionDays = days
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// TelegramEnabled reports whether the Telegram observer is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
