// Package config provides application configuration management.
// It loads settings from environment variables (optionally seeded from a .env
// file) and provides defaults for the server, upstream proxy, preference
// storage, live events, and optional integrations.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environments recognised by EnvEnvironment.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	Environment     string
	ShutdownTimeout time.Duration
	InstanceID      string

	// Upstream Configuration
	APIBaseURL      string        // ERP backend base URL; empty selects fallback-only mode
	UpstreamTimeout time.Duration // Timeout for a single upstream call

	// Data Configuration
	DataDir        string        // Directory for the preferences SQLite database
	PreferencesTTL time.Duration // Idle sessions older than this are pruned

	// Locale Configuration
	DefaultLocale string

	// Live Events Configuration
	StreamInterval  time.Duration
	StreamHeartbeat time.Duration

	// R2 Seed Configuration
	R2Enabled           bool
	R2AccountID         string
	R2AccessKeyID       string
	R2SecretAccessKey   string
	R2BucketName        string
	SeedPrefix          string
	SeedRefreshInterval time.Duration
	SeedGracePeriod     time.Duration

	// Sentry Configuration
	SentryEnabled    bool
	SentryDSN        string
	SentrySampleRate float64

	// Better Stack Configuration
	BetterStackEnabled bool
	BetterStackToken   string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		Environment:     strings.ToLower(getEnv(EnvEnvironment, EnvironmentDevelopment)),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		InstanceID:      getEnv(EnvInstanceID, ""),

		APIBaseURL:      strings.TrimRight(strings.TrimSpace(getEnv(EnvAPIBaseURL, "")), "/"),
		UpstreamTimeout: getDurationEnv(EnvUpstreamTimeout, UpstreamRequest),

		DataDir:        getEnv(EnvDataDir, getDefaultDataDir()),
		PreferencesTTL: getDurationEnv(EnvPreferencesTTL, 30*24*time.Hour),

		DefaultLocale: strings.ToLower(getEnv(EnvDefaultLocale, "en")),

		StreamInterval:  getDurationEnv(EnvStreamInterval, StreamInterval),
		StreamHeartbeat: getDurationEnv(EnvStreamHeartbeat, StreamHeartbeat),

		R2Enabled:           getBoolEnv(EnvR2Enabled, false),
		R2AccountID:         getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:       getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey:   getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:        getEnv(EnvR2BucketName, ""),
		SeedPrefix:          getEnv(EnvSeedPrefix, "seeds"),
		SeedRefreshInterval: getDurationEnv(EnvSeedRefreshInterval, SeedRefreshInterval),
		SeedGracePeriod:     getDurationEnv(EnvSeedGracePeriod, SeedGracePeriod),

		SentryEnabled:    getBoolEnv(EnvSentryEnabled, false),
		SentryDSN:        getEnv(EnvSentryDSN, ""),
		SentrySampleRate: getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackEnabled: getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:   getEnv(EnvBetterStackToken, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("ERP_PORT is required"))
	}
	if c.Environment != EnvironmentDevelopment && c.Environment != EnvironmentProduction {
		errs = append(errs, fmt.Errorf("ERP_ENV must be %q or %q, got %q", EnvironmentDevelopment, EnvironmentProduction, c.Environment))
	}
	if c.APIBaseURL != "" {
		u, err := url.Parse(c.APIBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("ERP_API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL))
		}
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ERP_UPSTREAM_TIMEOUT must be positive, got %v", c.UpstreamTimeout))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("ERP_DATA_DIR is required"))
	}
	if c.PreferencesTTL <= 0 {
		errs = append(errs, fmt.Errorf("ERP_PREFERENCES_TTL must be positive, got %v", c.PreferencesTTL))
	}
	if c.StreamInterval <= 0 {
		errs = append(errs, fmt.Errorf("ERP_STREAM_INTERVAL must be positive, got %v", c.StreamInterval))
	}
	if c.StreamHeartbeat <= 0 {
		errs = append(errs, fmt.Errorf("ERP_STREAM_HEARTBEAT must be positive, got %v", c.StreamHeartbeat))
	}

	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("ERP_R2_ACCOUNT_ID, ERP_R2_ACCESS_KEY_ID, ERP_R2_SECRET_ACCESS_KEY and ERP_R2_BUCKET_NAME are required when R2 is enabled"))
		}
		if c.SeedRefreshInterval <= 0 {
			errs = append(errs, fmt.Errorf("ERP_SEED_REFRESH_INTERVAL must be positive, got %v", c.SeedRefreshInterval))
		}
	}
	if c.SentryEnabled && c.SentryDSN == "" {
		errs = append(errs, errors.New("ERP_SENTRY_DSN is required when Sentry is enabled"))
	}
	if c.BetterStackEnabled && c.BetterStackToken == "" {
		errs = append(errs, errors.New("ERP_BETTERSTACK_TOKEN is required when Better Stack is enabled"))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, errors.New("ERP_METRICS_PASSWORD is required when metrics auth is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves bool environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the preferences database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "preferences.db")
}

// HasUpstream reports whether an ERP backend is configured.
// Its absence selects fallback-only mode and is not an error.
func (c *Config) HasUpstream() bool {
	return c.APIBaseURL != ""
}

// IsProduction reports whether developer diagnostics should be suppressed.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// R2Endpoint returns the S3-compatible endpoint for the configured account.
func (c *Config) R2Endpoint() string {
	if c.R2AccountID == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}
