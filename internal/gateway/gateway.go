// Package gateway implements the proxy/fallback policy shared by every ERP
// resource: reads degrade to local datasets, writes surface upstream failures.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/erp-gateway-go/internal/envelope"
	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
	"github.com/garyellow/erp-gateway-go/internal/listing"
	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
	"github.com/garyellow/erp-gateway-go/internal/seeds"
	"github.com/garyellow/erp-gateway-go/internal/upstream"
)

// metricLabel bounds upstream error codes accepted as metric label values.
var metricLabel = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// MaxBodyBytes bounds inbound mutation bodies.
const MaxBodyBytes = 1 << 20

const jsonContentType = "application/json"

// HeaderDataSource tells clients whether a read came from the backend or fallback data.
const HeaderDataSource = "X-Data-Source"

// Data source values.
const (
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
)

// Fallback reasons recorded in metrics.
const (
	reasonNotConfigured  = "not_configured"
	reasonUpstreamStatus = "upstream_status"
	reasonUpstreamError  = "upstream_error"
	reasonUnknownShape   = "unknown_shape"
)

// Config holds gateway dependencies.
type Config struct {
	Upstream *upstream.Client
	Catalog  *seeds.Catalog
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

// Gateway serves registered resources.
type Gateway struct {
	upstream *upstream.Client
	catalog  *seeds.Catalog
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	return &Gateway{
		upstream: cfg.Upstream,
		catalog:  cfg.Catalog,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.WithModule("gateway"),
	}
}

// Register installs the collection, item, write and action routes for res.
func (g *Gateway) Register(r gin.IRoutes, res Resource) {
	r.GET(res.Path, g.List(res))
	r.POST(res.Path, g.Create(res))
	r.GET(res.Path+"/:id", g.Get(res))
	r.PATCH(res.Path+"/:id", g.Update(res))
	r.PUT(res.Path+"/:id", g.Update(res))
	for _, action := range res.Actions {
		r.Handle(action.method(), res.Path+"/:id/"+action.Name, g.Action(res, action))
	}
}

// List serves GET /path.
func (g *Gateway) List(res Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.upstream.Configured() {
			g.serveFallbackList(c, res, reasonNotConfigured)
			return
		}

		resp, err := g.call(c, res, upstream.Request{
			Method:   http.MethodGet,
			Path:     res.TargetPath(),
			RawQuery: c.Request.URL.RawQuery,
			Header:   c.Request.Header,
		})
		switch {
		case err != nil:
			g.serveFallbackList(c, res, reasonUpstreamError)
			return
		case !resp.OK():
			g.serveFallbackList(c, res, reasonUpstreamStatus)
			return
		}

		list := envelope.NormalizeList(resp.Body)
		if list.Shape == envelope.ShapeUnknown {
			g.serveFallbackList(c, res, reasonUnknownShape)
			return
		}

		c.Header(HeaderDataSource, SourceUpstream)
		var meta any
		if list.Meta != nil {
			meta = list.Meta
		}
		envelope.JSON(c, http.StatusOK, list.Data, meta)
	}
}

func (g *Gateway) serveFallbackList(c *gin.Context, res Resource, reason string) {
	records, err := g.catalog.Records(res.Name)
	if err != nil {
		g.logger.WithError(err).WithField("resource", res.Name).Error("Fallback dataset unavailable")
		envelope.Abort(c, http.StatusInternalServerError, envelope.CodeInternal, "fallback data unavailable")
		return
	}

	data, meta := listing.Apply(records, listing.ParseQuery(c.Request.URL.Query()), res.SearchFields)
	g.recordFallback(c, res, reason)
	c.Header(HeaderDataSource, SourceFallback)
	envelope.JSON(c, http.StatusOK, data, meta)
}

// Get serves GET /path/:id.
func (g *Gateway) Get(res Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireID(c)
		if !ok {
			return
		}

		if !g.upstream.Configured() {
			g.serveFallbackItem(c, res, id, reasonNotConfigured)
			return
		}

		resp, err := g.call(c, res, upstream.Request{
			Method: http.MethodGet,
			Path:   itemPath(res, id),
			Header: c.Request.Header,
		})
		switch {
		case err != nil:
			g.serveFallbackItem(c, res, id, reasonUpstreamError)
			return
		case !resp.OK():
			g.serveFallbackItem(c, res, id, reasonUpstreamStatus)
			return
		}

		item, ok := envelope.NormalizeItem(resp.Body)
		if !ok {
			g.serveFallbackItem(c, res, id, reasonUnknownShape)
			return
		}
		c.Header(HeaderDataSource, SourceUpstream)
		envelope.JSON(c, http.StatusOK, item, nil)
	}
}

func (g *Gateway) serveFallbackItem(c *gin.Context, res Resource, id, reason string) {
	rec, err := g.catalog.Lookup(res.Name, res.idField(), id)
	if err != nil {
		if domerrors.IsNotFound(err) {
			envelope.Abort(c, http.StatusNotFound, envelope.CodeNotFound, fmt.Sprintf("%s %s not found", res.Name, id))
			return
		}
		g.logger.WithError(err).WithField("resource", res.Name).Error("Fallback dataset unavailable")
		envelope.Abort(c, http.StatusInternalServerError, envelope.CodeInternal, "fallback data unavailable")
		return
	}
	g.recordFallback(c, res, reason)
	c.Header(HeaderDataSource, SourceFallback)
	envelope.JSON(c, http.StatusOK, rec, nil)
}

// Create serves POST /path.
func (g *Gateway) Create(res Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, body, ok := readBody(c)
		if !ok {
			return
		}
		for _, field := range res.Required {
			if isBlank(body[field]) {
				abortMissingField(c, field)
				return
			}
		}

		if g.ForwardsWrites(res) {
			g.ForwardWrite(c, res, http.MethodPost, res.TargetPath(), raw, jsonContentType)
			return
		}

		rec := maps.Clone(body)
		rec[res.idField()] = uuid.NewString()
		c.Header(HeaderDataSource, SourceFallback)
		envelope.JSON(c, http.StatusCreated, rec, nil)
	}
}

// Update serves PATCH and PUT /path/:id.
func (g *Gateway) Update(res Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireID(c)
		if !ok {
			return
		}
		raw, body, ok := readBody(c)
		if !ok {
			return
		}

		if g.ForwardsWrites(res) {
			g.ForwardWrite(c, res, c.Request.Method, itemPath(res, id), raw, jsonContentType)
			return
		}
		g.echoWrite(c, res, id, body)
	}
}

// Action serves METHOD /path/:id/<action>.
func (g *Gateway) Action(res Resource, action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := requireID(c)
		if !ok {
			return
		}
		raw, body, ok := readBody(c)
		if !ok {
			return
		}
		value := body[action.Field]
		if isBlank(value) {
			abortMissingField(c, action.Field)
			return
		}
		if !action.allows(value) {
			envelope.AbortWithDetails(c, http.StatusUnprocessableEntity, envelope.CodeValidation,
				fmt.Sprintf("%s has an unsupported value", action.Field),
				gin.H{"field": action.Field, "allowed": action.Allowed})
			return
		}

		if g.ForwardsWrites(res) {
			g.ForwardWrite(c, res, c.Request.Method, itemPath(res, id)+"/"+action.Name, raw, jsonContentType)
			return
		}
		g.echoWrite(c, res, id, map[string]any{action.Field: value})
	}
}

// ForwardsWrites reports whether mutations on res go to the upstream.
func (g *Gateway) ForwardsWrites(res Resource) bool {
	return !res.EchoWrites && g.upstream.Configured()
}

// echoWrite merges body into a fresh copy of the fallback record. Nothing is retained.
func (g *Gateway) echoWrite(c *gin.Context, res Resource, id string, body map[string]any) {
	rec, err := g.catalog.Lookup(res.Name, res.idField(), id)
	if err != nil {
		if domerrors.IsNotFound(err) {
			envelope.Abort(c, http.StatusNotFound, envelope.CodeNotFound, fmt.Sprintf("%s %s not found", res.Name, id))
			return
		}
		envelope.Abort(c, http.StatusInternalServerError, envelope.CodeInternal, "fallback data unavailable")
		return
	}
	maps.Copy(rec, body)
	rec[res.idField()] = id

	c.Header(HeaderDataSource, SourceFallback)
	envelope.JSON(c, http.StatusOK, rec, nil)
}

// ForwardWrite applies the mutation policy: 2xx is normalized, error statuses
// propagate with the upstream body when it is JSON, a timeout becomes 502
// upstream_failure and any other transport failure 502 proxy_error.
func (g *Gateway) ForwardWrite(c *gin.Context, res Resource, method, path string, body []byte, contentType string) {
	resp, err := g.call(c, res, upstream.Request{
		Method:      method,
		Path:        path,
		RawQuery:    c.Request.URL.RawQuery,
		Header:      c.Request.Header,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		code, msg := envelope.CodeProxyError, "upstream request failed"
		if domerrors.IsTimeout(err) {
			code, msg = envelope.CodeUpstreamFailure, "upstream request timed out"
		}
		g.metrics.RecordHTTPError(code, "gateway")
		envelope.Abort(c, http.StatusBadGateway, code, msg)
		return
	}

	c.Header(HeaderDataSource, SourceUpstream)
	if !resp.OK() {
		g.upstreamError(c, res, method, resp)
		return
	}

	status := resp.StatusCode
	if status == http.StatusNoContent {
		status = http.StatusOK
	}
	if item, ok := envelope.NormalizeItem(resp.Body); ok {
		envelope.JSON(c, status, item, nil)
		return
	}
	if list := envelope.NormalizeList(resp.Body); list.Shape != envelope.ShapeUnknown {
		envelope.JSON(c, status, list.Data, nil)
		return
	}
	envelope.JSON(c, status, nil, nil)
}

// upstreamError relays a non-2xx write response. JSON bodies pass through
// untouched; anything else is replaced by an upstream error envelope.
func (g *Gateway) upstreamError(c *gin.Context, res Resource, method string, resp *upstream.Response) {
	parsed, parsedOK := envelope.ParseError(resp.Body)
	label := envelope.CodeUpstream
	if parsedOK && metricLabel.MatchString(parsed.Code) {
		label = parsed.Code
	}
	g.metrics.RecordHTTPError(label, "gateway")
	g.logger.WithField("resource", res.Name).
		WithField("method", method).
		WithField("status", resp.StatusCode).
		WithField("upstream_code", parsed.Code).
		WithField("upstream_message", parsed.Message).
		WarnContext(c.Request.Context(), "Upstream rejected write")

	if envelope.IsJSON(resp.Header.Get("Content-Type")) && json.Valid(resp.Body) {
		c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
		return
	}
	msg := fmt.Sprintf("upstream returned status %d", resp.StatusCode)
	if parsedOK && parsed.Message != "" {
		msg = parsed.Message
	}
	envelope.Abort(c, resp.StatusCode, envelope.CodeUpstream, msg)
}

func (g *Gateway) call(c *gin.Context, res Resource, req upstream.Request) (*upstream.Response, error) {
	start := time.Now()
	resp, err := g.upstream.Do(c.Request.Context(), req)
	elapsed := time.Since(start).Seconds()

	outcome := "success"
	switch {
	case err != nil && domerrors.IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case !resp.OK():
		outcome = "http_error"
	}
	g.metrics.RecordUpstreamRequest(res.Name, req.Method, outcome, elapsed)

	if err != nil {
		g.logger.WithError(err).
			WithField("resource", res.Name).
			WithField("method", req.Method).
			WarnContext(c.Request.Context(), "Upstream request failed")
	}
	return resp, err
}

func (g *Gateway) recordFallback(c *gin.Context, res Resource, reason string) {
	g.metrics.RecordFallback(res.Name, reason)
	if reason != reasonNotConfigured {
		g.logger.WithField("resource", res.Name).
			WithField("reason", reason).
			InfoContext(c.Request.Context(), "Serving fallback data")
	}
}

func itemPath(res Resource, id string) string {
	return res.TargetPath() + "/" + url.PathEscape(id)
}

// requireID rejects a blank :id before any upstream or fallback work happens.
func requireID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, "missing required path parameter: id")
		return "", false
	}
	return id, true
}

func readBody(c *gin.Context) ([]byte, map[string]any, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			envelope.Abort(c, http.StatusRequestEntityTooLarge, envelope.CodeBadRequest, "request body too large")
			return nil, nil, false
		}
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, "could not read request body")
		return nil, nil, false
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		envelope.Abort(c, http.StatusBadRequest, envelope.CodeBadRequest, "request body must be a JSON object")
		return nil, nil, false
	}
	return raw, body, true
}

func abortMissingField(c *gin.Context, field string) {
	envelope.AbortWithDetails(c, http.StatusBadRequest, envelope.CodeValidation,
		fmt.Sprintf("missing required field: %s", field),
		gin.H{"missing": []string{field}})
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}
