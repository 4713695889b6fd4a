package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/erp-gateway-go/internal/ctxutil"
	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-Id"

// HeaderOrgID selects the tenant organisation.
const HeaderOrgID = "X-Org-Id"

// securityHeadersMiddleware adds security headers to responses.
// The gateway serves JSON, CSV and event streams only, so nothing may be embedded or executed.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestID returns the inbound request or correlation id, or a fresh one.
func requestID(c *gin.Context) string {
	for _, h := range []string{HeaderRequestID, "X-Correlation-Id"} {
		if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// loggingMiddleware tags the request with an id and logs it with status-based levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		id := requestID(c)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), id))
		c.Header(HeaderRequestID, id)

		c.Next()

		status := c.Writer.Status()
		entry := log.WithRequestID(id).
			WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())

		if status >= 400 {
			m.RecordHTTPError(strconv.Itoa(status), routeModule(c.FullPath()))
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status == 404:
			entry.Debug("HTTP request not found")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}

// routeModule names the area of a matched route for metrics labels:
// "/api/crm/leads/:id" is "crm", "/readyz" is "system".
func routeModule(fullPath string) string {
	if fullPath == "" {
		return "unmatched"
	}
	rest, ok := strings.CutPrefix(fullPath, "/api/")
	if !ok {
		return "system"
	}
	module, _, _ := strings.Cut(rest, "/")
	return module
}

// orgMiddleware stores the X-Org-Id header in the request context for logging.
// The header itself is forwarded upstream by the gateway.
func orgMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if org := strings.TrimSpace(c.GetHeader(HeaderOrgID)); org != "" {
			c.Request = c.Request.WithContext(ctxutil.WithOrgID(c.Request.Context(), org))
		}
		c.Next()
	}
}
