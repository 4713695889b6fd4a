package config

import (
	"strings"
	"testing"
	"time"
)

func newTestConfig() *Config {
	return &Config{
		Port:            "10000",
		LogLevel:        "info",
		Environment:     EnvironmentDevelopment,
		ShutdownTimeout: GracefulShutdown,
		UpstreamTimeout: UpstreamRequest,
		DataDir:         "/tmp/erp",
		PreferencesTTL:  24 * time.Hour,
		DefaultLocale:   "en",
		StreamInterval:  StreamInterval,
		StreamHeartbeat: StreamHeartbeat,
		SeedPrefix:      "seeds",
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "")
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "10000" {
		t.Errorf("Expected default port '10000', got '%s'", cfg.Port)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("Expected default upstream timeout 10s, got %v", cfg.UpstreamTimeout)
	}
	if cfg.HasUpstream() {
		t.Error("Expected fallback-only mode when ERP_API_BASE_URL is unset")
	}
	if cfg.IsProduction() {
		t.Error("Expected development environment by default")
	}
	if cfg.SeedPrefix != "seeds" {
		t.Errorf("Expected default seed prefix 'seeds', got %q", cfg.SeedPrefix)
	}
}

func TestLoad_UpstreamOverrides(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, " https://erp.example.com/ ")
	t.Setenv(EnvUpstreamTimeout, "3s")
	t.Setenv(EnvEnvironment, "PRODUCTION")
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.APIBaseURL != "https://erp.example.com" {
		t.Errorf("Expected trimmed base URL, got %q", cfg.APIBaseURL)
	}
	if cfg.UpstreamTimeout != 3*time.Second {
		t.Errorf("Expected 3s upstream timeout, got %v", cfg.UpstreamTimeout)
	}
	if !cfg.IsProduction() {
		t.Error("Expected production environment")
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv(EnvUpstreamTimeout, "soon")
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.UpstreamTimeout != UpstreamRequest {
		t.Errorf("Expected default timeout for invalid value, got %v", cfg.UpstreamTimeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Port = "" }, "ERP_PORT"},
		{"unknown environment", func(c *Config) { c.Environment = "staging" }, "ERP_ENV"},
		{"relative base url", func(c *Config) { c.APIBaseURL = "erp.local/api" }, "ERP_API_BASE_URL"},
		{"zero upstream timeout", func(c *Config) { c.UpstreamTimeout = 0 }, "ERP_UPSTREAM_TIMEOUT"},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, "ERP_DATA_DIR"},
		{"negative stream interval", func(c *Config) { c.StreamInterval = -time.Second }, "ERP_STREAM_INTERVAL"},
		{"r2 without credentials", func(c *Config) { c.R2Enabled = true }, "ERP_R2_ACCOUNT_ID"},
		{"sentry without dsn", func(c *Config) { c.SentryEnabled = true }, "ERP_SENTRY_DSN"},
		{"betterstack without token", func(c *Config) { c.BetterStackEnabled = true }, "ERP_BETTERSTACK_TOKEN"},
		{"metrics auth without password", func(c *Config) { c.MetricsAuthEnabled = true }, "ERP_METRICS_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Expected error containing %q, got %v", tt.errContains, err)
			}
		})
	}
}

func TestConfig_R2Endpoint(t *testing.T) {
	cfg := newTestConfig()
	if got := cfg.R2Endpoint(); got != "" {
		t.Errorf("Expected empty endpoint without account, got %q", got)
	}
	cfg.R2AccountID = "abc123"
	if got := cfg.R2Endpoint(); got != "https://abc123.r2.cloudflarestorage.com" {
		t.Errorf("Unexpected endpoint %q", got)
	}
}

func TestConfig_SQLitePath(t *testing.T) {
	cfg := newTestConfig()
	if !strings.HasSuffix(cfg.SQLitePath(), "preferences.db") {
		t.Errorf("Expected preferences.db path, got %q", cfg.SQLitePath())
	}
}
