package modcache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConfigured is returned by Persist/Restore when no backing store
	// was configured. Callers must not assume durability without checking.
	ErrNotConfigured = errors.New("modcache: no persistent store configured")

	// ErrNotFound is returned by Store.Load for an unknown hash.
	ErrNotFound = errors.New("modcache: module not found")
)

// StoreStats summarizes a persistent store's contents.
type StoreStats struct {
	Modules   int
	TotalSize int64
}

// Store is the persistent storage boundary: an opaque durable
// key/value-with-listing store the cache delegates to. Implementations may
// be a local database, a file tree, or a remote object store; the cache
// makes no assumptions beyond this interface.
type Store interface {
	Save(ctx context.Context, m *CachedModule) error
	Load(ctx context.Context, hash string) (*CachedModule, error)
	Delete(ctx context.Context, hash string) error
	List(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (StoreStats, error)

	// Cleanup deletes modules created earlier than the cutoff and returns
	// how many were removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	Close() error
}
