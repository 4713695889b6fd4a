package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultShipBufferSize   = 1024
	defaultShipFlushTimeout = 5 * time.Second
	defaultShipWaitTimeout  = 50 * time.Millisecond
)

// AsyncOptions configures the remote shipping queue.
type AsyncOptions struct {
	BufferSize   int
	FlushTimeout time.Duration
	// WaitTimeout bounds how long a warning or error waits for queue space
	// before it is dropped. Lower levels never wait.
	WaitTimeout time.Duration
}

type shipment struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// shipQueue is shared by every handler derived from one AsyncHandler.
type shipQueue struct {
	ch           chan shipment
	flushTimeout time.Duration
	waitTimeout  time.Duration
	closed       atomic.Bool
	done         sync.WaitGroup

	droppedLow  atomic.Uint64 // debug and info
	droppedHigh atomic.Uint64 // warn and above
}

func newShipQueue(opts AsyncOptions) *shipQueue {
	q := &shipQueue{
		ch:           make(chan shipment, positiveOr(opts.BufferSize, defaultShipBufferSize)),
		flushTimeout: positiveOr(opts.FlushTimeout, defaultShipFlushTimeout),
		waitTimeout:  positiveOr(opts.WaitTimeout, defaultShipWaitTimeout),
	}
	q.done.Go(q.drain)
	return q
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

func (q *shipQueue) drain() {
	for s := range q.ch {
		_ = s.handler.Handle(s.ctx, s.record)
	}
}

func (q *shipQueue) push(s shipment) {
	if q.closed.Load() {
		return
	}
	select {
	case q.ch <- s:
		return
	default:
	}
	if s.record.Level < slog.LevelWarn {
		q.droppedLow.Add(1)
		return
	}
	timer := time.NewTimer(q.waitTimeout)
	defer timer.Stop()
	select {
	case q.ch <- s:
	case <-timer.C:
		q.droppedHigh.Add(1)
	}
}

func (q *shipQueue) close(ctx context.Context) error {
	if q.closed.Swap(true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.flushTimeout)
		defer cancel()
	}
	close(q.ch)
	finished := make(chan struct{})
	go func() {
		q.done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler queues records for a remote handler so shipping latency never
// reaches request paths. A full queue drops debug and info records at once;
// warnings and errors wait up to WaitTimeout first.
type AsyncHandler struct {
	queue   *shipQueue
	handler slog.Handler
}

// NewAsyncHandler starts the shipping queue for handler.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{queue: newShipQueue(opts), handler: handler}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle enqueues a copy of r. The copy is detached from ctx cancellation
// because it is shipped after the request has finished.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.handler.Enabled(ctx, r.Level) {
		return nil
	}
	h.queue.push(shipment{ctx: context.WithoutCancel(ctx), record: r.Clone(), handler: h.handler})
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithAttrs(attrs)}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{queue: h.queue, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes queued records, bounded by ctx or FlushTimeout.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || h.queue == nil {
		return nil
	}
	return h.queue.close(ctx)
}

// DroppedCounts reports records discarded on a full queue, split into
// debug/info and warn/error.
func (h *AsyncHandler) DroppedCounts() (low, high uint64) {
	if h == nil || h.queue == nil {
		return 0, 0
	}
	return h.queue.droppedLow.Load(), h.queue.droppedHigh.Load()
}
