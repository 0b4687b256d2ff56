package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth
	DocpaneAPIKey string

	// Document workspace
	DocumentDir    string
	MaxUploadBytes int64
	SessionTTL     time.Duration

	// Actions
	ActionTimeout time.Duration
	DateLayout    string

	// Commit latency window for /api/stats/commits
	CommitStatsWindow time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel slog.Level
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DocpaneAPIKey: os.Getenv("DOCPANE_API_KEY"),

		DocumentDir:    envOr("DOCUMENT_DIR", "./data"),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		SessionTTL:     envDuration("SESSION_TTL", 30*time.Minute),

		ActionTimeout: envDuration("ACTION_TIMEOUT", 15*time.Second),
		DateLayout:    envOr("DATE_LAYOUT", "2006/1/2"),

		CommitStatsWindow: envDuration("COMMIT_STATS_WINDOW", time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 15 * time.Second
	}
	if cfg.CommitStatsWindow <= 0 {
		cfg.CommitStatsWindow = time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.DocpaneAPIKey == "" {
		return fmt.Errorf("DOCPANE_API_KEY is required")
	}
	if c.DocumentDir == "" {
		return fmt.Errorf("DOCUMENT_DIR is required")
	}
	if strings.TrimSpace(time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC).Format(c.DateLayout)) == "" {
		return fmt.Errorf("DATE_LAYOUT %q produces an empty date", c.DateLayout)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}
