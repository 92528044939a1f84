package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_DSN", "UEX_API_URL", "UEX_SITE_URL", "POLL_INTERVAL",
		"POLL_WORKERS", "REMOTE_TIMEOUT", "LINK_TTL", "LOG_LEVEL", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
	// t.Setenv cannot unset; empty values exercise the fallbacks of the typed getters.
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DSN", "./data/relay.db")
	t.Setenv("UEX_API_URL", "https://api.uexcorp.space/2.0")
	t.Setenv("UEX_SITE_URL", "https://uexcorp.space")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Poll.Interval != 6*time.Second {
		t.Errorf("poll interval = %v, want 6s", cfg.Poll.Interval)
	}
	if cfg.Poll.Workers != 5 {
		t.Errorf("poll workers = %d, want 5", cfg.Poll.Workers)
	}
	if cfg.UEX.Timeout != 5*time.Second {
		t.Errorf("remote timeout = %v, want 5s", cfg.UEX.Timeout)
	}
	if cfg.LinkTTL != 0 {
		t.Errorf("link ttl = %v, want disabled", cfg.LinkTTL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v, want INFO", cfg.LogLevel)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("allowed origins = %v, want [*]", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("POLL_WORKERS", "9")
	t.Setenv("REMOTE_TIMEOUT", "2")
	t.Setenv("LINK_TTL", "72h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("UEX_PRODUCTION", "false")
	t.Setenv("DB_DSN", "postgres://relay@localhost/relay")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Poll.Interval)
	}
	if cfg.Poll.Workers != 9 {
		t.Errorf("poll workers = %d", cfg.Poll.Workers)
	}
	if cfg.UEX.Timeout != 2*time.Second {
		t.Errorf("remote timeout = %v", cfg.UEX.Timeout)
	}
	if cfg.LinkTTL != 72*time.Hour {
		t.Errorf("link ttl = %v", cfg.LinkTTL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("allowed origins = %v", cfg.AllowedOrigins)
	}
	if cfg.UEX.Production {
		t.Error("expected UEX_PRODUCTION=false to disable production mode")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:        "8080",
			DBDSN:       "relay.db",
			UEX:         UEXConfig{APIURL: "https://api.example", SiteURL: "https://site.example", Timeout: time.Second},
			Poll:        PollConfig{Interval: time.Second, Workers: 1, RetryAttempts: 1},
			BacklogSize: 1,
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(*Config){
		"empty port":       func(c *Config) { c.Port = "" },
		"empty dsn":        func(c *Config) { c.DBDSN = "" },
		"relative api url": func(c *Config) { c.UEX.APIURL = "/2.0" },
		"zero workers":     func(c *Config) { c.Poll.Workers = 0 },
		"zero interval":    func(c *Config) { c.Poll.Interval = 0 },
		"negative ttl":     func(c *Config) { c.LinkTTL = -time.Second },
		"zero backlog":     func(c *Config) { c.BacklogSize = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
