package stream

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/erp-gateway-go/internal/logger"
)

// retryMillis is the reconnect delay advertised to EventSource clients.
const retryMillis = 2000

// Handler serves GET /api/stream/events.
type Handler struct {
	hub       *Hub
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewHandler creates the SSE handler.
func NewHandler(hub *Hub, heartbeat time.Duration, log *logger.Logger) *Handler {
	return &Handler{hub: hub, heartbeat: heartbeat, logger: log.WithModule("stream")}
}

// Register installs the event stream route.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/stream/events", h.events)
}

func (h *Handler) events(c *gin.Context) {
	c.Header("Content-Type", sse.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ch, cancel := h.hub.Subscribe()
	defer cancel()

	ready := frame(Event{
		ID:   uuid.NewString(),
		Type: EventReady,
		Time: time.Now().UTC(),
		Data: gin.H{"clientId": uuid.NewString()},
	})
	ready.Retry = retryMillis
	if err := sse.Encode(c.Writer, ready); err != nil {
		return
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			return sse.Encode(w, frame(Event{Type: EventHeartbeat, Time: now.UTC(), Data: gin.H{}})) == nil
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			if err := sse.Encode(w, frame(ev)); err != nil {
				h.logger.WithError(err).DebugContext(ctx, "Stream client write failed")
				return false
			}
			return true
		}
	})
}

// frame wraps ev as an SSE event whose data is the JSON-encoded Event.
func frame(ev Event) sse.Event {
	return sse.Event{Id: ev.ID, Event: ev.Type, Data: ev}
}
