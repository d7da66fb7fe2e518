package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Wikipedia.Timeout != 15*time.Second {
		t.Fatalf("expected 15s API timeout, got %s", cfg.Wikipedia.Timeout)
	}
	if cfg.Wikipedia.BatchSize != 50 {
		t.Fatalf("expected batch size 50, got %d", cfg.Wikipedia.BatchSize)
	}
	if cfg.Wikipedia.MaxWorkers != 10 {
		t.Fatalf("expected 10 workers, got %d", cfg.Wikipedia.MaxWorkers)
	}
	if cfg.Search.MaxDepth != 6 {
		t.Fatalf("expected max depth 6, got %d", cfg.Search.MaxDepth)
	}
	if cfg.Cache.LinkTTL != 24*time.Hour {
		t.Fatalf("expected 24h link TTL, got %s", cfg.Cache.LinkTTL)
	}
	if cfg.Tasks.SoftTimeLimit != 300*time.Second || cfg.Tasks.HardTimeLimit != 600*time.Second {
		t.Fatalf("expected 300/600s task limits, got %s/%s", cfg.Tasks.SoftTimeLimit, cfg.Tasks.HardTimeLimit)
	}
	if cfg.Tasks.MaxRetries != 3 || cfg.Tasks.RetryBackoff != 60*time.Second {
		t.Fatalf("expected 3 retries at 60s, got %d at %s", cfg.Tasks.MaxRetries, cfg.Tasks.RetryBackoff)
	}

	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://example:6380/1")
	t.Setenv("WIKIPEDIA_API_TIMEOUT", "30")
	t.Setenv("WIKIPEDIA_MAX_WORKERS", "4")
	t.Setenv("MAX_SEARCH_DEPTH", "3")
	t.Setenv("CACHE_TTL", "3600")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Redis.URL != "redis://example:6380/1" {
		t.Fatalf("unexpected redis url: %s", cfg.Redis.URL)
	}
	if cfg.Wikipedia.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.Wikipedia.Timeout)
	}
	if cfg.Wikipedia.MaxWorkers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Wikipedia.MaxWorkers)
	}
	if cfg.Search.MaxDepth != 3 {
		t.Fatalf("expected max depth 3, got %d", cfg.Search.MaxDepth)
	}
	if cfg.Cache.LinkTTL != time.Hour {
		t.Fatalf("expected 1h link TTL, got %s", cfg.Cache.LinkTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikipath.yaml")
	yaml := `
server:
  port: "9001"
search:
  max_depth: 4
wikipedia:
  max_workers: 2
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9001" {
		t.Fatalf("expected port 9001, got %s", cfg.Server.Port)
	}
	if cfg.Search.MaxDepth != 4 || cfg.Wikipedia.MaxWorkers != 2 {
		t.Fatalf("yaml overrides not applied: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.Wikipedia.BatchSize != 50 {
		t.Fatalf("expected default batch size, got %d", cfg.Wikipedia.BatchSize)
	}
}

func TestCLIOverridesEnv(t *testing.T) {
	t.Setenv("WIKIPATH_PORT", "7000")

	flags, err := ParseFlags([]string{"--port", "7001"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadWithCLI(flags)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "7001" {
		t.Fatalf("expected CLI to win, got %s", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Wikipedia.BatchSize = 51 },
		func(c *Config) { c.Wikipedia.BatchSize = 0 },
		func(c *Config) { c.Wikipedia.MaxWorkers = 0 },
		func(c *Config) { c.Search.MaxDepth = 0 },
		func(c *Config) { c.Redis.URL = "" },
		func(c *Config) { c.Tasks.SoftTimeLimit = 2 * c.Tasks.HardTimeLimit },
	}

	for i, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		if err := validate(&cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
