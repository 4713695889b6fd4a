// Package stream fans synthetic ERP events out to Server-Sent Events clients.
// There is no replay and no delivery guarantee: a subscriber whose buffer is
// full misses the event.
package stream

import (
	"sync"
	"time"

	"github.com/garyellow/erp-gateway-go/internal/metrics"
)

// SubscriberBuffer is the per-client channel capacity.
const SubscriberBuffer = 64

// Event types.
const (
	EventReady            = "ready"
	EventHeartbeat        = "heartbeat"
	EventActivityCreated  = "activity.created"
	EventOpportunityStage = "opportunity.stage_changed"
)

// Event is one server-sent event.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Hub is a fan-out broker.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	closed  bool
	metrics *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{subs: make(map[chan Event]struct{}), metrics: m}
}

// Subscribe registers a client. The returned cancel func must be called once;
// it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, SubscriberBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	h.metrics.StreamClientConnected()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			_, ok := h.subs[ch]
			delete(h.subs, ch)
			h.mu.Unlock()
			if ok {
				close(ch)
			}
			h.metrics.StreamClientDisconnected()
		})
	}
}

// Publish delivers ev to every subscriber with buffer space and returns the
// number of subscribers that received it.
func (h *Hub) Publish(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			h.metrics.RecordStreamDrop()
		}
	}
	h.metrics.RecordStreamEvent(ev.Type)
	return delivered
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}
