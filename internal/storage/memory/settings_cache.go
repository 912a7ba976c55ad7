package memory

import (
	"context"
	"sync"

	"snipe-console/internal/storage"
)

// SettingsCache is an in-memory implementation of storage.SettingsCache.
type SettingsCache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewSettingsCache creates a new in-memory settings cache.
func NewSettingsCache() *SettingsCache {
	return &SettingsCache{
		blobs: make(map[string][]byte),
	}
}

// Get returns the blob stored under key.
func (s *SettingsCache) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores value under key.
func (s *SettingsCache) Put(_ context.Context, key string, value []byte) error {
	if key == "" || value == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	s.blobs[key] = v
	return nil
}

var _ storage.SettingsCache = (*SettingsCache)(nil)
