package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/garyellow/erp-gateway-go/internal/config"
)

// slowQuery is the threshold above which queries are logged as slow.
const slowQuery = 100 * time.Millisecond

// DB is the SQLite-backed preference database. Each session gets its own
// namespace via Namespace.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates the database at path (":memory:" for tests) and initializes the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writes.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", config.DatabaseBusyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{conn: conn, path: path, now: time.Now}, nil
}

func initSchema(ctx context.Context, conn *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS preferences (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_preferences_updated_at ON preferences(updated_at);
	`
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the database is reachable. Used by /readyz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Namespace returns the Store holding sessionID's preferences.
func (db *DB) Namespace(sessionID string) Store {
	return &namespace{db: db, sessionID: sessionID}
}

// DeleteStale removes every session whose most recent read or write is older than ttl.
// It returns the number of rows deleted.
func (db *DB) DeleteStale(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := db.now().Add(-ttl).Unix()
	query := `
		DELETE FROM preferences WHERE session_id IN (
			SELECT session_id FROM preferences
			GROUP BY session_id
			HAVING MAX(updated_at) < ?
		)
	`
	res, err := db.conn.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale preferences: %w", err)
	}
	return res.RowsAffected()
}

// CountSessions returns the number of sessions with at least one stored value.
func (db *DB) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(DISTINCT session_id) FROM preferences`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

type namespace struct {
	db        *DB
	sessionID string
}

func (n *namespace) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	defer logSlow(ctx, "Get", start)

	// A read counts as activity, so it refreshes updated_at for DeleteStale.
	var value string
	err := n.db.conn.QueryRowContext(ctx,
		`UPDATE preferences SET updated_at = MAX(updated_at, ?)
		WHERE session_id = ? AND key = ?
		RETURNING value`,
		n.db.now().Unix(), n.sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return value, true, nil
}

func (n *namespace) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	defer logSlow(ctx, "Set", start)

	query := `
		INSERT INTO preferences (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := n.db.conn.ExecContext(ctx, query, n.sessionID, key, value, n.db.now().Unix()); err != nil {
		slog.ErrorContext(ctx, "failed to save preference", "key", key, "error", err)
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

func (n *namespace) Remove(ctx context.Context, key string) error {
	if _, err := n.db.conn.ExecContext(ctx,
		`DELETE FROM preferences WHERE session_id = ? AND key = ?`,
		n.sessionID, key,
	); err != nil {
		return fmt.Errorf("failed to remove preference %s: %w", key, err)
	}
	return nil
}

func logSlow(ctx context.Context, operation string, start time.Time) {
	if d := time.Since(start); d > slowQuery {
		slog.WarnContext(ctx, "slow database operation",
			"operation", operation,
			"duration_ms", d.Milliseconds())
	}
}
