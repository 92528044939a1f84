// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	// AllowedOrigins feeds the CORS middleware and the websocket origin check.
	AllowedOrigins []string
	DBDSN          string
	LogLevel       slog.Level
	AdminToken     string

	UEX     UEXConfig
	Poll    PollConfig
	LinkTTL time.Duration

	// BacklogSize bounds the undelivered messages kept per thread.
	BacklogSize int
}

// UEXConfig describes the marketplace API.
type UEXConfig struct {
	APIURL     string
	SiteURL    string
	Production bool
	Timeout    time.Duration
}

// PollConfig tunes the notification poller.
type PollConfig struct {
	Interval      time.Duration
	Workers       int
	RetryAttempts int
	RetryDelay    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		DBDSN:          getEnv("DB_DSN", "./data/relay.db"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		UEX: UEXConfig{
			APIURL:     getEnv("UEX_API_URL", "https://api.uexcorp.space/2.0"),
			SiteURL:    getEnv("UEX_SITE_URL", "https://uexcorp.space"),
			Production: getEnvBool("UEX_PRODUCTION", true),
			Timeout:    getEnvDuration("REMOTE_TIMEOUT", 5*time.Second),
		},
		Poll: PollConfig{
			Interval:      getEnvDuration("POLL_INTERVAL", 6*time.Second),
			Workers:       getEnvInt("POLL_WORKERS", 5),
			RetryAttempts: getEnvInt("POLL_RETRY_ATTEMPTS", 3),
			RetryDelay:    getEnvDuration("POLL_RETRY_DELAY", time.Second),
		},
		LinkTTL:     getEnvDuration("LINK_TTL", 0),
		BacklogSize: getEnvInt("THREAD_BACKLOG_SIZE", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN cannot be empty")
	}
	for name, raw := range map[string]string{"UEX_API_URL": c.UEX.APIURL, "UEX_SITE_URL": c.UEX.SiteURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.UEX.Timeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be > 0")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.Poll.Workers <= 0 {
		return fmt.Errorf("POLL_WORKERS must be > 0")
	}
	if c.Poll.RetryAttempts <= 0 {
		return fmt.Errorf("POLL_RETRY_ATTEMPTS must be > 0")
	}
	if c.Poll.RetryDelay < 0 {
		return fmt.Errorf("POLL_RETRY_DELAY cannot be negative")
	}
	if c.LinkTTL < 0 {
		return fmt.Errorf("LINK_TTL cannot be negative")
	}
	if c.BacklogSize <= 0 {
		return fmt.Errorf("THREAD_BACKLOG_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("6s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
