package seeds

import (
	"sync/atomic"
	"time"
)

// ReadinessState tracks whether the first seed sync has finished.
// The service reports ready once MarkReady is called or the grace period elapses,
// whichever comes first. startTime and grace are immutable after construction.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time
	grace     time.Duration
}

// ReadinessStatus is the readiness block of /readyz.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	GraceSeconds   int    `json:"grace_seconds,omitempty"`
}

// NewReadinessState creates a not-ready state with the given grace period.
func NewReadinessState(grace time.Duration) *ReadinessState {
	return &ReadinessState{
		startTime: time.Now(),
		grace:     grace,
	}
}

// IsReady reports whether traffic should be accepted.
func (s *ReadinessState) IsReady() bool {
	if s.ready.Load() {
		return true
	}
	return time.Since(s.startTime) >= s.grace
}

// MarkReady records that the first sync completed.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
}

// SyncCompleted reports whether MarkReady was called.
// Unlike IsReady it ignores the grace period.
func (s *ReadinessState) SyncCompleted() bool {
	return s.ready.Load()
}

// Status returns the current readiness for /readyz.
func (s *ReadinessState) Status() ReadinessStatus {
	isReady := s.IsReady()
	status := ReadinessStatus{
		Ready:          isReady,
		ElapsedSeconds: int(time.Since(s.startTime).Seconds()),
		GraceSeconds:   int(s.grace.Seconds()),
	}

	switch {
	case !isReady:
		status.Reason = "seed sync in progress"
	case !s.ready.Load():
		status.Reason = "grace period elapsed (seed sync may still be running)"
	}
	return status
}
