// Package config provides centralized timeout constants for the application.
//
// These values are tuned for a backend-for-frontend that sits between the
// browser and an optional ERP backend:
//   - Upstream calls must fail fast enough that a degraded read still renders
//   - SSE connections are long-lived and must not be cut by write timeouts
//   - SQLite holds only small preference rows
package config

import "time"

// Upstream timeouts
const (
	// UpstreamRequest is the timeout for a single call to the ERP backend.
	// Reads that exceed it are answered from fallback data.
	UpstreamRequest = 10 * time.Second

	// UpstreamIdleConn is how long idle keep-alive connections to the backend are kept.
	UpstreamIdleConn = 90 * time.Second
)

// HTTP server timeouts
const (
	// HTTPRead is the server read timeout. Request bodies are small JSON or CSV payloads.
	HTTPRead = 15 * time.Second

	// HTTPReadHeader bounds header reads separately from body reads.
	HTTPReadHeader = 5 * time.Second

	// HTTPWrite is left at zero so the SSE endpoint can stream indefinitely.
	// Non-streaming handlers are bounded by UpstreamRequest instead.
	HTTPWrite time.Duration = 0

	// HTTPIdle is the keep-alive idle timeout.
	HTTPIdle = 120 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 5 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Live event stream
const (
	// StreamInterval is the default delay between synthetic events.
	StreamInterval = 5 * time.Second

	// StreamHeartbeat keeps proxies from closing idle event streams.
	StreamHeartbeat = 15 * time.Second
)

// Background jobs
const (
	// PreferencesCleanupInterval is how often idle preference namespaces are pruned.
	PreferencesCleanupInterval = 24 * time.Hour

	// SeedRefreshInterval is how often seed overrides are re-read from R2.
	SeedRefreshInterval = time.Hour

	// SeedSyncTimeout bounds a single seed synchronisation pass.
	SeedSyncTimeout = 2 * time.Minute

	// SeedGracePeriod is how long /readyz waits for the first seed sync.
	SeedGracePeriod = 30 * time.Second

	// ReadinessCheckTimeout bounds the dependency checks in /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
