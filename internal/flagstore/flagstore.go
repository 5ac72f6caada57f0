// Package flagstore provides the durable key/value store that survives
// process restarts. Every other stateful component (session persistence,
// callback recovery) is built on top of it.
package flagstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is the durable flag contract. Writes are synchronous and must be
// observable after a crash that follows their return. There is no multi-key
// atomicity; callers that change several keys together have to tolerate
// partial writes.
type Store interface {
	// Set writes key=value durably.
	Set(key, value string) error
	// Get returns the stored value, or def when the key is absent.
	Get(key, def string) (string, error)
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(key string) error
}

// SQLiteStore persists flags in a single SQLite table.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the flag database at path.
// synchronous(FULL) so a returned Set has reached stable storage;
// busy_timeout covers a second process racing on the same file.
func Open(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("flag store path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create flag store directory: %w", err)
		}
	}
	// modernc only honors pragmas in the _pragma=name(value) form.
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open flag db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping flag db: %w", err)
	}
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS flags (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create flags table: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("flag key is required")
	}
	_, err := s.sqlDB.Exec(`
INSERT INTO flags (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set flag %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(key, def string) (string, error) {
	var value string
	err := s.sqlDB.QueryRow(`SELECT value FROM flags WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("get flag %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.sqlDB.Exec(`DELETE FROM flags WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove flag %q: %w", key, err)
	}
	return nil
}
