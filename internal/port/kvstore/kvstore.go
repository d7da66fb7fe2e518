// Package kvstore defines the port interface for the remote key/value store.
package kvstore

import (
	"context"
	"time"
)

// Store is the port interface for the shared key/value store that holds
// search sessions, caches, and task records. Values are opaque byte
// strings; JSON encoding lives at the caller boundary.
//
// Implementations wrap every backend failure as domain.ErrStoreUnavailable
// so callers can classify errors with errors.Is.
type Store interface {
	// Get returns the value for key, with ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with the given TTL. A zero TTL stores
	// without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// ClearPattern deletes all keys matching the glob pattern and returns
	// the count deleted.
	ClearPattern(ctx context.Context, pattern string) (int, error)

	// TTL returns the remaining lifetime of key, or a negative duration
	// when the key is missing or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Increment atomically adds n to the integer value at key and returns
	// the new value.
	Increment(ctx context.Context, key string, n int64) (int64, error)

	// SetIfAbsent stores value under key only when key is missing.
	// It is atomic per key and returns whether the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
