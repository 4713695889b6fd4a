package upstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
)

func TestClient_Configured(t *testing.T) {
	assert.False(t, NewClient("", time.Second, time.Minute).Configured())
	assert.False(t, NewClient("   ", time.Second, time.Minute).Configured())
	assert.True(t, NewClient("http://erp.local/", time.Second, time.Minute).Configured())

	var nilClient *Client
	assert.False(t, nilClient.Configured())
}

func TestClient_URL(t *testing.T) {
	c := NewClient("http://erp.local/", time.Second, time.Minute)
	assert.Equal(t, "http://erp.local/api/v1/crm/leads", c.URL("/crm/leads", ""))
	assert.Equal(t, "http://erp.local/api/v1/crm/leads?q=a+b&page=2", c.URL("/crm/leads", "q=a+b&page=2"))
}

func TestClient_Do_NotConfigured(t *testing.T) {
	_, err := NewClient("", time.Second, time.Minute).Do(context.Background(), Request{Method: http.MethodGet, Path: "/crm/leads"})
	assert.True(t, domerrors.IsUpstreamNotConfigured(err))
}

func TestClient_Do_ForwardsRequest(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"L-9"}}`))
	}))
	defer srv.Close()

	inbound := http.Header{}
	inbound.Set("Authorization", "Bearer t0k")
	inbound.Set("Cookie", "sid=1")
	inbound.Set("X-Org-Id", "ORG-1")
	inbound.Set("X-Secret", "never forwarded")

	c := NewClient(srv.URL, time.Second, time.Minute)
	resp, err := c.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Path:     "/crm/leads",
		RawQuery: "dryRun=1&tag=a%20b",
		Header:   inbound,
		Body:     []byte(`{"company":"Acme"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"data":{"id":"L-9"}}`, string(resp.Body))

	require.NotNil(t, got)
	assert.Equal(t, "/api/v1/crm/leads", got.URL.Path)
	assert.Equal(t, "dryRun=1&tag=a%20b", got.URL.RawQuery)
	assert.Equal(t, "Bearer t0k", got.Header.Get("Authorization"))
	assert.Equal(t, "sid=1", got.Header.Get("Cookie"))
	assert.Equal(t, "ORG-1", got.Header.Get("X-Org-Id"))
	assert.Empty(t, got.Header.Get("X-Secret"))
	assert.Equal(t, "no-store", got.Header.Get("Cache-Control"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, `{"company":"Acme"}`, string(gotBody))
}

func TestClient_Do_DecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(`[{"id":"A-1"}]`))
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, time.Second, time.Minute).Do(context.Background(), Request{Method: http.MethodGet, Path: "/crm/accounts"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"A-1"}]`, string(resp.Body))
}

func TestClient_Do_ReturnsErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, time.Second, time.Minute).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestClient_Do_TimeoutSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond, time.Minute).Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
	require.Error(t, err)
	assert.True(t, domerrors.IsTimeout(err), "err = %v", err)

	ue, ok := domerrors.AsUpstreamError(err)
	require.True(t, ok)
	assert.Zero(t, ue.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Do_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewClient(base, time.Second, time.Minute).Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	var ue *domerrors.UpstreamError
	assert.True(t, errors.As(err, &ue))
	assert.False(t, domerrors.IsTimeout(err))
}
