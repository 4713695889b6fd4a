package i18n

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
	"github.com/garyellow/erp-gateway-go/internal/prefs"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error         { return f.err }
func (f failingStore) Remove(context.Context, string) error              { return f.err }

func embeddedTranslator(t *testing.T) *Translator {
	t.Helper()
	b, err := LoadEmbedded()
	require.NoError(t, err)
	return NewTranslator(b, metrics.New(prometheus.NewRegistry()), logger.NewWithWriter("error", io.Discard), false)
}

func TestState_Init(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := embeddedTranslator(t)

	tests := []struct {
		name       string
		stored     string
		tags       []string
		want       Locale
		wantSource string
	}{
		{"persisted wins", "no", []string{"ar-EG"}, Norwegian, SourcePersisted},
		{"negotiated when absent", "", []string{"ar-EG"}, Arabic, SourceNegotiated},
		{"invalid persisted value ignored", "klingon", []string{"nb-NO"}, Norwegian, SourceNegotiated},
		{"no tags keeps fallback", "", nil, English, SourceDefault},
		{"unrecognized tag", "", []string{"fr"}, English, SourceNegotiated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := prefs.NewMemoryStore()
			if tt.stored != "" {
				require.NoError(t, store.Set(ctx, prefs.KeyLocale, tt.stored))
			}
			s := NewState(store, tr, English)
			require.NoError(t, s.Init(ctx, tt.tags))
			assert.Equal(t, tt.want, s.Locale())
			assert.Equal(t, tt.wantSource, s.Source())
		})
	}
}

func TestState_InitOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewState(prefs.NewMemoryStore(), embeddedTranslator(t), English)

	require.NoError(t, s.Init(ctx, []string{"ar"}))
	require.NoError(t, s.Init(ctx, []string{"no"}))
	assert.Equal(t, Arabic, s.Locale())
	assert.Equal(t, RTL, s.Direction())
}

func TestState_SetLocalePersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	s := NewState(store, embeddedTranslator(t), English)
	require.NoError(t, s.Init(ctx, []string{"en-US"}))

	require.NoError(t, s.SetLocale(ctx, Arabic))
	assert.Equal(t, Arabic, s.Locale())
	assert.Equal(t, RTL, s.Direction())
	assert.Equal(t, "الحسابات", s.T("crm.accounts.title", nil))

	v, ok, err := store.Get(ctx, prefs.KeyLocale)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ar", v)

	// A fresh state for the same store starts from the persisted value.
	next := NewState(store, embeddedTranslator(t), English)
	require.NoError(t, next.Init(ctx, []string{"no"}))
	assert.Equal(t, Arabic, next.Locale())

	err = s.SetLocale(ctx, Locale("xx"))
	assert.True(t, domerrors.IsUnsupportedLocale(err))
	assert.Equal(t, Arabic, s.Locale())
}

func TestState_StoreFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("disk full")
	s := NewState(failingStore{err: boom}, embeddedTranslator(t), English)

	err := s.Init(ctx, []string{"no"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Norwegian, s.Locale(), "negotiation still applies")

	err = s.SetLocale(ctx, Arabic)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Norwegian, s.Locale(), "failed persistence leaves state unchanged")
}

func TestState_TranslateMiss(t *testing.T) {
	t.Parallel()
	s := NewState(prefs.NewMemoryStore(), embeddedTranslator(t), Norwegian)
	assert.Equal(t, "Hei Ada", s.T("common.greeting", map[string]any{"name": "Ada"}))
	assert.Equal(t, "common.nothing", s.T("common.nothing", nil))
}
