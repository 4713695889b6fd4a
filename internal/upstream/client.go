// Package upstream is the outbound HTTP client for the ERP backend.
// Every call is a single attempt bounded by the configured timeout.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
)

// APIPrefix is the versioned path prefix on the upstream base.
const APIPrefix = "/api/v1"

// MaxBodySize bounds upstream response bodies.
const MaxBodySize = 8 << 20

// ForwardedHeaders lists the inbound headers copied onto upstream requests.
var ForwardedHeaders = []string{"Authorization", "Cookie", "X-Org-Id"}

// Request describes one upstream call.
type Request struct {
	Method      string
	Path        string // resource path below APIPrefix, e.g. "/crm/leads/L-1"
	RawQuery    string // forwarded verbatim
	Header      http.Header
	Body        []byte
	ContentType string
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client calls the ERP backend.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for baseURL. An empty baseURL yields a client
// whose Configured reports false and whose Do fails with ErrUpstreamNotConfigured.
func NewClient(baseURL string, timeout time.Duration, idleConnTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
	}
}

// Configured reports whether an upstream base URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// URL builds the target URL for path and rawQuery.
func (c *Client) URL(path, rawQuery string) string {
	target := c.baseURL + APIPrefix + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// Do performs req once. Any HTTP status is returned as a Response; transport
// failures return *errors.UpstreamError, wrapping ErrTimeout when the deadline fired.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, domerrors.ErrUpstreamNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.URL(req.Path, req.RawQuery)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, domerrors.NewUpstreamError(target, 0, fmt.Errorf("failed to create request: %w", err))
	}

	for _, name := range ForwardedHeaders {
		if v := req.Header.Get(name); v != "" {
			httpReq.Header.Set(name, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip")
	httpReq.Header.Set("Cache-Control", "no-store")
	if req.Body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = "application/json"
		}
		httpReq.Header.Set("Content-Type", ct)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, domerrors.NewUpstreamError(target, resp.StatusCode, fmt.Errorf("failed to decompress gzip: %w", err))
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, MaxBodySize))
	if err != nil {
		return nil, c.transportError(ctx, target, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) transportError(ctx context.Context, target string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", domerrors.ErrTimeout, c.timeout, err)
	}
	return domerrors.NewUpstreamError(target, 0, err)
}
