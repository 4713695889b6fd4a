package app

import (
	"context"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/erp-gateway-go/internal/buildinfo"
	"github.com/garyellow/erp-gateway-go/internal/config"
	"github.com/garyellow/erp-gateway-go/internal/seeds"
)

// Upstream modes reported by /readyz.
const (
	upstreamModeProxy    = "proxy"
	upstreamModeFallback = "fallback-only"
)

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if !a.readinessState.IsReady() {
		status := a.readinessState.Status()
		a.logger.WithField("elapsed_seconds", status.ElapsedSeconds).
			Debug("Readiness check: seed sync in progress")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": status.Reason,
			"progress": gin.H{
				"elapsed_seconds": status.ElapsedSeconds,
				"grace_seconds":   status.GraceSeconds,
			},
		})
		return
	}

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	sessions, err := a.db.CountSessions(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count preference sessions")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"upstream": a.upstreamMode(),
		"seeds":    a.seedStats(),
		"sessions": sessions,
		"streams":  a.hub.Subscribers(),
	})
}

func (a *Application) upstreamMode() string {
	if a.upstream.Configured() {
		return upstreamModeProxy
	}
	return upstreamModeFallback
}

// seedStats counts datasets by where they are served from.
func (a *Application) seedStats() gin.H {
	overrides := 0
	names := a.catalog.Names()
	for _, name := range names {
		if a.catalog.Source(name) == seeds.SourceOverride {
			overrides++
		}
	}
	return gin.H{
		"datasets":       len(names),
		"overrides":      overrides,
		"sync_completed": a.readinessState.SyncCompleted(),
	}
}

func (a *Application) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    valueOr(buildinfo.Version, "dev"),
		"commit":     valueOr(buildinfo.Commit, "unknown"),
		"build_date": valueOr(buildinfo.BuildDate, "unknown"),
		"go":         runtime.Version(),
	})
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
