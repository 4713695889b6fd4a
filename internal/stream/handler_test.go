package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
)

type sseFrame struct {
	id    string
	event string
	data  string
	retry string
}

// readFrame reads lines until a blank line ends an event frame.
func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.event != "" {
				return f
			}
		case strings.HasPrefix(line, "id:"):
			f.id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			f.event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			f.data = strings.TrimPrefix(line, "data:")
		case strings.HasPrefix(line, "retry:"):
			f.retry = strings.TrimPrefix(line, "retry:")
		}
	}
}

func TestHandler_StreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(metrics.New(prometheus.NewRegistry()))
	h := NewHandler(hub, 50*time.Millisecond, logger.NewWithWriter("error", io.Discard))

	r := gin.New()
	h.Register(r.Group("/api"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream;charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)
	ready := readFrame(t, reader)
	assert.Equal(t, EventReady, ready.event)
	assert.NotEmpty(t, ready.id)
	assert.Contains(t, ready.data, "clientId")
	assert.Equal(t, "2000", ready.retry)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(Event{ID: "ev-1", Type: EventOpportunityStage, Time: time.Now(), Data: map[string]any{"to": "won"}})

	// Heartbeats may interleave with the published event.
	var got sseFrame
	for got.event != EventOpportunityStage {
		got = readFrame(t, reader)
		if got.event != EventOpportunityStage {
			assert.Equal(t, EventHeartbeat, got.event)
		}
	}
	assert.Equal(t, "ev-1", got.id)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(got.data), &ev))
	assert.Equal(t, "ev-1", ev.ID)
	assert.Equal(t, map[string]any{"to": "won"}, ev.Data)

	hb := readFrame(t, reader)
	for hb.event != EventHeartbeat {
		hb = readFrame(t, reader)
	}
	assert.Empty(t, hb.id)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_HubClosedEndsStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(metrics.New(prometheus.NewRegistry()))
	h := NewHandler(hub, time.Hour, logger.NewWithWriter("error", io.Discard))

	r := gin.New()
	h.Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, EventReady, readFrame(t, reader).event)

	hub.Close()
	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}
