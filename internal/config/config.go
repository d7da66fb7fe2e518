// Package config provides hierarchical configuration loading for wikipath.
// Precedence: defaults < YAML file < environment variables < CLI flags.
package config

import (
	"fmt"
	"time"
)

// Config holds all runtime configuration for the wikipath service and worker.
type Config struct {
	Server    Server    `yaml:"server"`
	Redis     Redis     `yaml:"redis"`
	NATS      NATS      `yaml:"nats"`
	Wikipedia Wikipedia `yaml:"wikipedia"`
	Search    Search    `yaml:"search"`
	Tasks     Tasks     `yaml:"tasks"`
	Cache     Cache     `yaml:"cache"`
	Breaker   Breaker   `yaml:"breaker"`
	Logging   Logging   `yaml:"logging"`
}

// Server holds the HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`        // HTTP listen port (default: 8000)
	CORSOrigin string `yaml:"cors_origin"` // Access-Control-Allow-Origin value (default: *)
}

// Redis holds the KV store connection configuration.
type Redis struct {
	URL          string        `yaml:"url"`            // redis:// connection URL
	DialTimeout  time.Duration `yaml:"dial_timeout"`   // default: 5s
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // default: 3s
	WriteTimeout time.Duration `yaml:"write_timeout"`  // default: 3s
	PoolSize     int           `yaml:"pool_size"`      // connections per process (default: 10)
	MinIdleConns int           `yaml:"min_idle_conns"` // default: 2
}

// NATS holds the task broker configuration.
type NATS struct {
	URL string `yaml:"url"`
}

// Wikipedia holds the upstream MediaWiki API client configuration.
type Wikipedia struct {
	APIURL     string        `yaml:"api_url"`     // default: https://en.wikipedia.org/w/api.php
	Timeout    time.Duration `yaml:"timeout"`     // per-HTTP-call timeout (default: 15s)
	BatchSize  int           `yaml:"batch_size"`  // titles per API call, hard limit 50
	MaxWorkers int           `yaml:"max_workers"` // concurrent sub-batch fetches (default: 10)
	UserAgent  string        `yaml:"user_agent"`
}

// Search holds BFS engine configuration.
type Search struct {
	MaxDepth     int           `yaml:"max_depth"`     // depth bound (default: 6)
	BatchSize    int           `yaml:"batch_size"`    // BFS_BATCH_SIZE (default: 50); the engine expands one page per pop and does not read it
	SessionTTL   time.Duration `yaml:"session_ttl"`   // TTL on bfs_* session keys (default: 1h)
	ResultTTL    time.Duration `yaml:"result_ttl"`    // TTL on path:* result cache (default: 1h)
	ExploreTTL   time.Duration `yaml:"explore_ttl"`   // TTL on explore:* cache (default: 30m)
	PageInfoTTL  time.Duration `yaml:"page_info_ttl"` // page_info:* TTL (default: 2h); PageInfo results are not cached, so nothing reads it
	ProgressStep int           `yaml:"progress_step"` // report progress every N pops (default: 3)
}

// Tasks holds the background task runtime configuration.
type Tasks struct {
	SoftTimeLimit time.Duration `yaml:"soft_time_limit"` // graceful stop (default: 300s)
	HardTimeLimit time.Duration `yaml:"hard_time_limit"` // attempt abort (default: 600s)
	MaxRetries    int           `yaml:"max_retries"`     // retries after first attempt (default: 3)
	RetryBackoff  time.Duration `yaml:"retry_backoff"`   // delay between attempts (default: 60s)
	ResultTTL     time.Duration `yaml:"result_ttl"`      // TTL on task:* records (default: 1h)
}

// Cache holds the link cache configuration.
type Cache struct {
	LinkTTL    time.Duration `yaml:"link_ttl"`     // TTL on wiki_links:* (default: 24h)
	L1MaxBytes int64         `yaml:"l1_max_bytes"` // in-process cache budget (default: 64MB)
	L1Expire   time.Duration `yaml:"l1_expire"`    // L1 backfill lifetime (default: 5m)
}

// Breaker holds circuit breaker settings for the upstream API path.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"` // consecutive failures before opening (default: 5)
	Timeout     time.Duration `yaml:"timeout"`      // open duration before half-open (default: 30s)
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`   // debug, info, warn, error
	Service string `yaml:"service"` // "service" attribute on every record
	Async   bool   `yaml:"async"`   // buffered async handler
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8000",
			CORSOrigin: "*",
		},
		Redis: Redis{
			URL:          "redis://localhost:6379/0",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		NATS: NATS{
			URL: "nats://localhost:4222",
		},
		Wikipedia: Wikipedia{
			APIURL:     "https://en.wikipedia.org/w/api.php",
			Timeout:    15 * time.Second,
			BatchSize:  50,
			MaxWorkers: 10,
			UserAgent:  "wikipath/1.0 (+https://github.com/wikirace/wikipath)",
		},
		Search: Search{
			MaxDepth:     6,
			BatchSize:    50,
			SessionTTL:   time.Hour,
			ResultTTL:    time.Hour,
			ExploreTTL:   30 * time.Minute,
			PageInfoTTL:  2 * time.Hour,
			ProgressStep: 3,
		},
		Tasks: Tasks{
			SoftTimeLimit: 300 * time.Second,
			HardTimeLimit: 600 * time.Second,
			MaxRetries:    3,
			RetryBackoff:  60 * time.Second,
			ResultTTL:     time.Hour,
		},
		Cache: Cache{
			LinkTTL:    24 * time.Hour,
			L1MaxBytes: 64 << 20,
			L1Expire:   5 * time.Minute,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "wikipath",
		},
	}
}

// validate rejects configurations that cannot work.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("redis.url must not be empty")
	}
	if cfg.Wikipedia.BatchSize < 1 || cfg.Wikipedia.BatchSize > 50 {
		return fmt.Errorf("wikipedia.batch_size must be in 1..50, got %d", cfg.Wikipedia.BatchSize)
	}
	if cfg.Wikipedia.MaxWorkers < 1 {
		return fmt.Errorf("wikipedia.max_workers must be positive, got %d", cfg.Wikipedia.MaxWorkers)
	}
	if cfg.Search.MaxDepth < 1 {
		return fmt.Errorf("search.max_depth must be positive, got %d", cfg.Search.MaxDepth)
	}
	if cfg.Tasks.SoftTimeLimit > cfg.Tasks.HardTimeLimit {
		return fmt.Errorf("tasks.soft_time_limit %s exceeds hard_time_limit %s",
			cfg.Tasks.SoftTimeLimit, cfg.Tasks.HardTimeLimit)
	}
	if cfg.Tasks.MaxRetries < 0 {
		return fmt.Errorf("tasks.max_retries must not be negative, got %d", cfg.Tasks.MaxRetries)
	}
	return nil
}
