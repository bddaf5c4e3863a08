// Package storage persists whole-bucket JSON snapshots under versioned keys.
// The default backend is a single-file SQLite database; a shared PostgreSQL
// backend is available for setups that already run one.
package storage

import "context"

// BucketStore is the flat key -> snapshot mapping backing the state manager.
// A Save replaces the full snapshot for a bucket; there is no partial-write
// protocol and no transactional boundary across buckets.
type BucketStore interface {
	// Load returns the snapshot under key, or (nil, nil) when absent.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save writes the full snapshot under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes the snapshot under key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
