package app

import (
	"context"
	"time"

	"github.com/garyellow/erp-gateway-go/internal/config"
)

// preferencesCleanup prunes idle preference sessions on startup and then every
// PreferencesCleanupInterval until ctx is cancelled.
func (a *Application) preferencesCleanup(ctx context.Context) {
	a.logger.Debug("Preferences cleanup job started")
	defer a.logger.Debug("Preferences cleanup job stopped")

	a.runPreferencesCleanup(ctx)

	ticker := time.NewTicker(config.PreferencesCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runPreferencesCleanup(ctx)
		}
	}
}

// runPreferencesCleanup deletes sessions idle for longer than the configured TTL.
func (a *Application) runPreferencesCleanup(ctx context.Context) {
	start := time.Now()

	deleted, err := a.db.DeleteStale(ctx, a.cfg.PreferencesTTL)
	duration := time.Since(start)
	a.metrics.RecordJob("preferences_cleanup", duration.Seconds())
	if err != nil {
		if ctx.Err() == nil {
			a.logger.WithError(err).Error("Failed to prune idle preference sessions")
		}
		return
	}

	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", duration.Milliseconds()).
		Info("Preferences cleanup completed")
}
