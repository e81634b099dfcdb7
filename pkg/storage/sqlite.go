package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	merr "github.com/vango-dev/microscope/internal/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLite is a durable Engine backed by a SQLite database file. Several
// processes may open the same file; WAL mode lets readers proceed during
// writes.
type SQLite struct {
	db      *sql.DB
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite creates or opens the database at path. Use ":memory:" for a
// private in-memory database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &SQLite{db: db, timeout: 5 * time.Second}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// WithTimeout sets the per-operation timeout. Defaults to 5s.
func (s *SQLite) WithTimeout(d time.Duration) *SQLite {
	s.timeout = d
	return s
}

func (s *SQLite) ctx() (context.Context, context.CancelFunc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	return ctx, cancel, nil
}

// GetItem implements Engine.
func (s *SQLite) GetItem(key string) (string, bool, error) {
	ctx, cancel, err := s.ctx()
	if err != nil {
		return "", false, err
	}
	defer cancel()

	var value string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM items WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, merr.New(merr.CodeStorageRead).WithDetailf("sqlite key %q", key).Wrap(err)
	}
	return value, true, nil
}

// SetItem implements Engine.
func (s *SQLite) SetItem(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	ctx, cancel, err := s.ctx()
	if err != nil {
		return err
	}
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return merr.New(merr.CodeStorageWrite).WithDetailf("sqlite key %q", key).Wrap(err)
	}
	return nil
}

// RemoveItem implements Engine.
func (s *SQLite) RemoveItem(key string) error {
	ctx, cancel, err := s.ctx()
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE key = ?`, key); err != nil {
		return merr.New(merr.CodeStorageRemove).WithDetailf("sqlite key %q", key).Wrap(err)
	}
	return nil
}

// Keys implements Lister. Keys are sorted.
func (s *SQLite) Keys() ([]string, error) {
	ctx, cancel, err := s.ctx()
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM items ORDER BY key`)
	if err != nil {
		return nil, merr.New(merr.CodeStorageRead).WithDetail("sqlite keys").Wrap(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database. Close is idempotent.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
