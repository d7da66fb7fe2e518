package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store implements the kvstore.Store port over the shared client.
type Store struct {
	c *Client
}

// NewStore returns the KV store view of the client.
func NewStore(c *Client) *Store {
	return &Store{c: c}
}

// Get returns the value for key, with ok=false on a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, storeErr("get", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return storeErr("set", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.c.rdb.Del(ctx, key).Err(); err != nil {
		return storeErr("del", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, storeErr("exists", key, err)
	}
	return n > 0, nil
}

// ClearPattern deletes all keys matching the glob pattern via SCAN and
// returns the count deleted.
func (s *Store) ClearPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := s.c.rdb.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return deleted, storeErr("scan", pattern, err)
		}
		if len(keys) > 0 {
			n, err := s.c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, storeErr("del", pattern, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// TTL returns the remaining lifetime of key. Redis reports -2 for a
// missing key and -1 for a key without expiry; both pass through.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, storeErr("ttl", key, err)
	}
	return d, nil
}

// Increment atomically adds n to the integer value at key.
func (s *Store) Increment(ctx context.Context, key string, n int64) (int64, error) {
	v, err := s.c.rdb.IncrBy(ctx, key, n).Result()
	if err != nil {
		return 0, storeErr("incrby", key, err)
	}
	return v, nil
}

// SetIfAbsent stores value under key only when key is missing.
func (s *Store) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, storeErr("setnx", key, err)
	}
	return ok, nil
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.c.rdb.Ping(ctx).Err(); err != nil {
		return storeErr("ping", "", err)
	}
	return nil
}
