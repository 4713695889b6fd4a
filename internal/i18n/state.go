package i18n

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyellow/erp-gateway-go/internal/prefs"
)

// Locale sources reported by State.Source.
const (
	SourceDefault    = "default"
	SourcePersisted  = "persisted"
	SourceNegotiated = "negotiated"
	SourceExplicit   = "explicit"
)

// State is the active locale of one session. It is initialized once and then
// changed only through SetLocale, which persists the new value.
type State struct {
	mu          sync.RWMutex
	store       prefs.Store
	translator  *Translator
	locale      Locale
	source      string
	initialized bool
}

// NewState creates a state holding fallback until Init runs.
func NewState(store prefs.Store, translator *Translator, fallback Locale) *State {
	if !fallback.IsSupported() {
		fallback = DefaultLocale
	}
	return &State{
		store:      store,
		translator: translator,
		locale:     fallback,
		source:     SourceDefault,
	}
}

// Init sets the starting locale from the persisted value, or by negotiating
// browserTags when nothing valid is stored. Only the first call has effect.
// A store error is returned after negotiation so the state stays usable.
func (s *State) Init(ctx context.Context, browserTags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	s.initialized = true

	stored, ok, err := s.store.Get(ctx, prefs.KeyLocale)
	if err == nil && ok {
		if l := Locale(stored); l.IsSupported() {
			s.locale, s.source = l, SourcePersisted
			return nil
		}
	}

	if len(browserTags) > 0 {
		s.locale, s.source = Negotiate(browserTags...), SourceNegotiated
	}
	if err != nil {
		return fmt.Errorf("read persisted locale: %w", err)
	}
	return nil
}

// SetLocale switches the active locale and persists it. Unsupported codes are
// rejected without changing state.
func (s *State) SetLocale(ctx context.Context, l Locale) error {
	if !l.IsSupported() {
		_, err := ParseLocale(string(l))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, prefs.KeyLocale, string(l)); err != nil {
		return fmt.Errorf("persist locale: %w", err)
	}
	s.locale, s.source, s.initialized = l, SourceExplicit, true
	return nil
}

// Locale returns the active locale.
func (s *State) Locale() Locale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locale
}

// Source reports how the active locale was chosen.
func (s *State) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Direction returns the writing direction of the active locale.
func (s *State) Direction() string {
	return s.Locale().Direction()
}

// T translates key in the active locale.
func (s *State) T(key string, vars map[string]any) string {
	return s.translator.T(s.Locale(), key, vars)
}
