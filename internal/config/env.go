// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "ERP_PORT"
	EnvLogLevel        = "ERP_LOG_LEVEL"
	EnvEnvironment     = "ERP_ENV"
	EnvShutdownTimeout = "ERP_SHUTDOWN_TIMEOUT"
	EnvInstanceID      = "ERP_INSTANCE_ID"

	// Upstream
	EnvAPIBaseURL      = "ERP_API_BASE_URL"
	EnvUpstreamTimeout = "ERP_UPSTREAM_TIMEOUT"

	// Data
	EnvDataDir        = "ERP_DATA_DIR"
	EnvPreferencesTTL = "ERP_PREFERENCES_TTL"

	// Locale
	EnvDefaultLocale = "ERP_DEFAULT_LOCALE"

	// Live events
	EnvStreamInterval  = "ERP_STREAM_INTERVAL"
	EnvStreamHeartbeat = "ERP_STREAM_HEARTBEAT"

	// R2 Seed Feature
	EnvR2Enabled           = "ERP_R2_ENABLED"
	EnvR2AccountID         = "ERP_R2_ACCOUNT_ID"
	EnvR2AccessKeyID       = "ERP_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey   = "ERP_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName        = "ERP_R2_BUCKET_NAME"
	EnvSeedPrefix          = "ERP_SEED_PREFIX"
	EnvSeedRefreshInterval = "ERP_SEED_REFRESH_INTERVAL"
	EnvSeedGracePeriod     = "ERP_SEED_GRACE_PERIOD"

	// Sentry Feature
	EnvSentryEnabled    = "ERP_SENTRY_ENABLED"
	EnvSentryDSN        = "ERP_SENTRY_DSN"
	EnvSentrySampleRate = "ERP_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackEnabled = "ERP_BETTERSTACK_ENABLED"
	EnvBetterStackToken   = "ERP_BETTERSTACK_TOKEN"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "ERP_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "ERP_METRICS_USERNAME"
	EnvMetricsPassword    = "ERP_METRICS_PASSWORD"
)
