// Package prefs persists small per-session UI preferences behind a
// get/set/remove port so callers never touch ambient storage directly.
package prefs

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
)

// Preference keys.
const (
	KeyLocale           = "erp.locale"
	KeyAuthMode         = "erp.authMode"
	KeySidebarCollapsed = "erp.sidebarCollapsed"
)

// Auth modes stored under KeyAuthMode.
const (
	AuthModeMock = "mock"
	AuthModeReal = "real"
)

// Store is the persistence port for one session's preferences.
type Store interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove is a no-op for absent keys.
	Remove(ctx context.Context, key string) error
}

// Validator rejects values that may not be stored under a key.
type Validator func(value string) error

// Validators maps every accepted key to its value check.
type Validators map[string]Validator

// DefaultValidators covers the keys prefs owns. The locale key is added by
// the caller that knows the supported locales.
func DefaultValidators() Validators {
	return Validators{
		KeyAuthMode:         oneOf(KeyAuthMode, AuthModeMock, AuthModeReal),
		KeySidebarCollapsed: oneOf(KeySidebarCollapsed, "true", "false"),
	}
}

// With returns a copy of v with key validated by fn.
func (v Validators) With(key string, fn Validator) Validators {
	out := maps.Clone(v)
	if out == nil {
		out = Validators{}
	}
	out[key] = fn
	return out
}

// Keys returns the accepted keys in sorted order.
func (v Validators) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}

// Validate checks a key/value pair. Unknown keys are rejected.
func (v Validators) Validate(key, value string) error {
	fn, ok := v[key]
	if !ok {
		return domerrors.NewValidationError(key, "unknown preference key")
	}
	return fn(value)
}

func oneOf(key string, allowed ...string) Validator {
	return func(value string) error {
		if !slices.Contains(allowed, value) {
			return domerrors.NewValidationError(key, fmt.Sprintf("must be one of %v", allowed))
		}
		return nil
	}
}

// MemoryStore is an in-process Store for tests and stubs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Snapshot returns a copy of every stored value for keys.
func Snapshot(ctx context.Context, store Store, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		v, ok, err := store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = v
		}
	}
	return out, nil
}
