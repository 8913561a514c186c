package cache

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"redistrict/pkg/apperror"
	"redistrict/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Backend != BackendMemory {
		t.Errorf("expected backend 'memory', got %s", opts.Backend)
	}
	if opts.DefaultTTL != time.Hour {
		t.Errorf("expected default TTL 1h, got %v", opts.DefaultTTL)
	}
	if opts.MaxEntries != 1000 {
		t.Errorf("expected max entries 1000, got %d", opts.MaxEntries)
	}
	if opts.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis addr 'localhost:6379', got %s", opts.RedisAddr)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.CacheConfig{
		Driver:     "redis",
		Host:       "redis.local",
		Port:       6380,
		Password:   "secret",
		DB:         1,
		DefaultTTL: 10 * time.Minute,
		MaxEntries: 500,
	}

	opts := FromConfig(cfg)

	if opts.Backend != "redis" {
		t.Errorf("expected backend 'redis', got %s", opts.Backend)
	}
	if opts.DefaultTTL != 10*time.Minute {
		t.Errorf("expected TTL 10m, got %v", opts.DefaultTTL)
	}
	if opts.RedisAddr != "redis.local:6380" {
		t.Errorf("expected addr 'redis.local:6380', got %s", opts.RedisAddr)
	}
	if opts.RedisPassword != "secret" || opts.RedisDB != 1 {
		t.Errorf("unexpected redis credentials: %+v", opts)
	}
	if opts.MaxEntries != 500 {
		t.Errorf("expected max entries 500, got %d", opts.MaxEntries)
	}

	// Нулевой лимит не затирает умолчание
	opts = FromConfig(&config.CacheConfig{Driver: "memory"})
	if opts.MaxEntries != DefaultOptions().MaxEntries {
		t.Errorf("expected default max entries, got %d", opts.MaxEntries)
	}
}

func TestNew(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		c, err := New(&Options{Backend: BackendMemory})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer c.Close()

		if _, ok := c.(*MemoryCache); !ok {
			t.Errorf("expected *MemoryCache, got %T", c)
		}
	})

	t.Run("nil options", func(t *testing.T) {
		c, err := New(nil)
		if err != nil {
			t.Fatalf("New(nil) error = %v", err)
		}
		defer c.Close()
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(&Options{Backend: "memcached"})
		if !apperror.Is(err, apperror.CodeInvalidConfig) {
			t.Errorf("expected INVALID_CONFIG, got %v", err)
		}
	})
}
