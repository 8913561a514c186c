// Package cache stores finished plan results keyed by a canonical hash of the
// input graph and run parameters. Memory and Redis backends share one interface.
package cache

import (
	"context"
	"errors"
	"time"

	"redistrict/pkg/apperror"
	"redistrict/pkg/config"
)

// Backend types for cache implementations.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Standard errors returned by cache operations.
var (
	// ErrKeyNotFound is returned when a requested key does not exist in the cache.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCacheClosed is returned when an operation is attempted on a closed cache.
	ErrCacheClosed = errors.New("cache is closed")
)

// Cache is the byte-level store behind PlanCache.
type Cache interface {
	// Get returns ErrKeyNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key; ttl <= 0 uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// GetWithTTL returns the value and its remaining lifetime.
	GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, err error)
	// DeleteByPattern removes keys matching a glob with at most one '*'.
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	TotalKeys    int64
	Hits         int64
	Misses       int64
	Evictions    int64
	HitRate      float64
	MemoryBytes  int64
	KeysByPrefix map[string]int64
	Backend      string
}

// Options configures a Cache instance.
type Options struct {
	Backend    string
	DefaultTTL time.Duration

	// memory
	MaxEntries      int
	CleanupInterval time.Duration

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// DefaultOptions returns options for a small in-memory cache.
func DefaultOptions() *Options {
	return &Options{
		Backend:         BackendMemory,
		DefaultTTL:      time.Hour,
		MaxEntries:      1000,
		CleanupInterval: time.Minute,
		RedisAddr:       "localhost:6379",
		RedisPoolSize:   10,
	}
}

// FromConfig создаёт опции из конфигурации
func FromConfig(cfg *config.CacheConfig) *Options {
	opts := DefaultOptions()
	opts.Backend = cfg.Driver
	opts.DefaultTTL = cfg.DefaultTTL
	opts.RedisAddr = cfg.Address()
	opts.RedisPassword = cfg.Password
	opts.RedisDB = cfg.DB
	if cfg.MaxEntries > 0 {
		opts.MaxEntries = cfg.MaxEntries
	}
	return opts
}

// New создаёт кэш на основе опций
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	switch opts.Backend {
	case BackendRedis:
		return NewRedisCache(opts)
	case BackendMemory, "":
		return NewMemoryCache(opts), nil
	default:
		return nil, apperror.Newf(apperror.CodeInvalidConfig, "unknown cache backend %q", opts.Backend).
			WithField("cache.driver")
	}
}
