package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_FileSystemDatabase(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "preferences.db")

	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, db.Path())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNamespace_Isolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	alice := db.Namespace("session-a")
	bob := db.Namespace("session-b")

	require.NoError(t, alice.Set(ctx, KeyLocale, "ar"))
	require.NoError(t, bob.Set(ctx, KeyLocale, "no"))
	require.NoError(t, alice.Set(ctx, KeyLocale, "en"))

	v, ok, err := alice.Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "en", v)

	v, ok, err = bob.Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "no", v)

	require.NoError(t, alice.Remove(ctx, KeyLocale))
	_, ok, err = alice.Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = bob.Get(ctx, KeyLocale)
	assert.True(t, ok)
}

func TestDeleteStale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }
	require.NoError(t, db.Namespace("old").Set(ctx, KeyLocale, "en"))
	require.NoError(t, db.Namespace("old").Set(ctx, KeyAuthMode, AuthModeMock))
	require.NoError(t, db.Namespace("mixed").Set(ctx, KeyLocale, "ar"))

	db.now = func() time.Time { return base.Add(40 * 24 * time.Hour) }
	require.NoError(t, db.Namespace("mixed").Set(ctx, KeyAuthMode, AuthModeReal))
	require.NoError(t, db.Namespace("fresh").Set(ctx, KeyLocale, "no"))

	n, err := db.DeleteStale(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	sessions, err := db.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sessions)

	// A session with one recent write keeps its older values.
	_, ok, err := db.Namespace("mixed").Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteStale_ReadKeepsSessionAlive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }
	require.NoError(t, db.Namespace("reader").Set(ctx, KeyLocale, "ar"))
	require.NoError(t, db.Namespace("idle").Set(ctx, KeyLocale, "en"))

	// The reader only loads its locale on later visits and never writes again.
	db.now = func() time.Time { return base.Add(25 * 24 * time.Hour) }
	v, ok, err := db.Namespace("reader").Get(ctx, KeyLocale)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ar", v)

	// Missing keys do not create rows.
	_, ok, err = db.Namespace("idle").Get(ctx, KeySidebarCollapsed)
	require.NoError(t, err)
	assert.False(t, ok)

	db.now = func() time.Time { return base.Add(40 * 24 * time.Hour) }
	n, err := db.DeleteStale(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = db.Namespace("reader").Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = db.Namespace("idle").Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNamespace_GetNeverMovesActivityBackwards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }
	require.NoError(t, db.Namespace("s").Set(ctx, KeyLocale, "no"))

	// A clock step backwards on read must not age the session.
	db.now = func() time.Time { return base.Add(-48 * time.Hour) }
	_, _, err := db.Namespace("s").Get(ctx, KeyLocale)
	require.NoError(t, err)

	db.now = func() time.Time { return base.Add(12 * time.Hour) }
	n, err := db.DeleteStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}
