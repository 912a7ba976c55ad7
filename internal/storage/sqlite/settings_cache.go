// Package sqlite stores the settings cache in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"snipe-console/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings_cache (
    cache_key  TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// SettingsCache implements storage.SettingsCache on SQLite.
type SettingsCache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path and applies the schema.
func Open(path string) (*SettingsCache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SettingsCache{db: db}, nil
}

// Close closes the database.
func (s *SettingsCache) Close() error {
	return s.db.Close()
}

// Get returns the blob stored under key. Returns ErrNotFound if absent.
func (s *SettingsCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings_cache WHERE cache_key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settings cache %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put stores value under key.
func (s *SettingsCache) Put(ctx context.Context, key string, value []byte) error {
	if key == "" || value == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings_cache (cache_key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(cache_key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("put settings cache %s: %w", key, err)
	}
	return nil
}

var _ storage.SettingsCache = (*SettingsCache)(nil)
