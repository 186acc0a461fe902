// Package sqlite implements a persistent key-value backend over SQLite,
// suitable for long-lived client installs that want the cache to survive
// restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/concrnt/concrnt-go/store"
)

// Store wraps a SQLite database holding a single kv table.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path, runs the migration,
// and enables WAL mode for concurrent readers.
func Open(path string) (*Store, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	// Append per-connection PRAGMAs to the DSN so every pooled connection gets them.
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=synchronous(normal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite setup (%s): %w", pragma, err)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	data BLOB NULL,
	ts INTEGER NOT NULL
);`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Get(ctx context.Context, key string) (store.Entry, bool, error) {
	var data sql.Null[[]byte]
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT data, ts FROM kv WHERE key = ?`, key).Scan(&data, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, err
	}
	e := store.Entry{Timestamp: time.UnixMilli(ts)}
	if data.Valid {
		e.Data = store.NormalizeData(data.V)
	}
	return e, true, nil
}

func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	data = store.NormalizeData(data)
	var value any
	if data != nil {
		value = data
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv(key, data, ts) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, ts = excluded.ts`,
		key, value, time.Now().UnixMilli())
	return err
}

func (s *Store) Invalidate(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func ensureParentDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
