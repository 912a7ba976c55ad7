package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"snipe-console/internal/storage"
)

//go:embed schema.sql
var schema string

// Migrate applies the embedded schema. It is idempotent.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply settings cache schema: %w", err)
	}
	return nil
}

// SettingsCache is a PostgreSQL implementation of storage.SettingsCache.
// One row per cache key, value stored as JSONB.
type SettingsCache struct {
	pool *Pool
}

// NewSettingsCache creates a new PostgreSQL settings cache.
func NewSettingsCache(pool *Pool) *SettingsCache {
	return &SettingsCache{pool: pool}
}

// Compile-time interface check.
var _ storage.SettingsCache = (*SettingsCache)(nil)

// Get returns the blob stored under key. Returns ErrNotFound if absent.
func (s *SettingsCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT value::text
		FROM settings_cache
		WHERE cache_key = $1
	`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settings cache %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put stores value under key. Uses upsert to handle insert and update.
func (s *SettingsCache) Put(ctx context.Context, key string, value []byte) error {
	if key == "" || value == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings_cache (cache_key, value, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (cache_key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = NOW()
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("put settings cache %s: %w", key, err)
	}
	return nil
}
