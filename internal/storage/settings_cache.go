package storage

import "context"

// Fixed cache keys for the settings blobs.
const (
	KeySettings    = "settings"             // full settings object
	KeyGlobalSnipe = "settings.globalSnipe" // global snipe domain only
	KeyFilter      = "settings.filter"      // filter domain only
)

// SettingsCache is the durable local key/value cache for JSON settings blobs.
type SettingsCache interface {
	// Get returns the blob stored under key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous blob.
	Put(ctx context.Context, key string, value []byte) error
}
