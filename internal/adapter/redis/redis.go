// Package redis implements the kvstore and workqueue ports on a Redis
// backend using a single connection pool per process.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/wikirace/wikipath/internal/config"
	"github.com/wikirace/wikipath/internal/domain"
)

// Client wraps the shared go-redis client. The KV store and work queue
// adapters are views over the same pool.
type Client struct {
	rdb *redis.Client
}

// Connect parses the configured URL and establishes the connection pool.
// The connection is verified with a ping before returning.
func Connect(ctx context.Context, cfg config.Redis) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}

	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", opts.Addr, "db", opts.DB, "pool_size", opts.PoolSize)
	return &Client{rdb: rdb}, nil
}

// NewFromAddr creates a client for a bare host:port address. Used by tests.
func NewFromAddr(addr string) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// storeErr wraps a backend failure as the single StoreUnavailable kind.
func storeErr(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", domain.ErrStoreUnavailable, op, key, err)
}
