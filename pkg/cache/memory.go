package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache in-memory реализация кэша с вытеснением по LRU
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front - самый свежий
	defaultTTL time.Duration
	maxEntries int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache создаёт кэш и запускает фоновую очистку; Close её останавливает
func NewMemoryCache(opts *Options) *MemoryCache {
	if opts == nil {
		opts = DefaultOptions()
	}

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultOptions().MaxEntries
	}
	interval := opts.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	c := &MemoryCache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		defaultTTL: opts.DefaultTTL,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop(interval)

	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := c.GetWithTTL(ctx, key)
	return value, err
}

func (c *MemoryCache) GetWithTTL(_ context.Context, key string) ([]byte, time.Duration, error) {
	if c.closed.Load() {
		return nil, 0, ErrCacheClosed
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, 0, ErrKeyNotFound
	}
	entry := el.Value.(*memoryEntry)
	if entry.expired(now) {
		c.removeElement(el)
		c.misses.Add(1)
		return nil, 0, ErrKeyNotFound
	}

	c.hits.Add(1)
	c.order.MoveToFront(el)

	ttl := time.Duration(-1)
	if !entry.expiresAt.IsZero() {
		ttl = entry.expiresAt.Sub(now)
	}
	return append([]byte(nil), entry.value...), ttl, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	entry := &memoryEntry{key: key, value: append([]byte(nil), value...), expiresAt: expiresAt}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return nil
	}

	for len(c.items) >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions.Add(1)
	}
	c.items[key] = c.order.PushFront(entry)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	return ok && !el.Value.(*memoryEntry).expired(time.Now()), nil
}

func (c *MemoryCache) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	for key, el := range c.items {
		if matchPattern(pattern, key) {
			c.removeElement(el)
			count++
		}
	}
	return count, nil
}

func (c *MemoryCache) Stats(_ context.Context) (*Stats, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := &Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
		KeysByPrefix: make(map[string]int64),
		Backend:      BackendMemory,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	for key, el := range c.items {
		entry := el.Value.(*memoryEntry)
		if entry.expired(now) {
			continue
		}
		stats.TotalKeys++
		stats.MemoryBytes += int64(len(entry.value))
		stats.KeysByPrefix[extractPrefix(key)]++
	}
	return stats, nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.stopCh)
	c.wg.Wait()

	c.mu.Lock()
	c.items = nil
	c.order.Init()
	c.mu.Unlock()
	return nil
}

// Len возвращает число записей, включая ещё не вычищенные просроченные
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, el := range c.items {
		if el.Value.(*memoryEntry).expired(now) {
			c.removeElement(el)
		}
	}
}

// removeElement вызывается под c.mu
func (c *MemoryCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*memoryEntry).key)
}

// matchPattern проверяет соответствие ключа шаблону с одной '*':
// "*", "prefix*", "*suffix", "prefix*suffix" или точное совпадение
func matchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}

	star := strings.Index(pattern, "*")
	if star == -1 {
		return pattern == key
	}

	prefix, suffix := pattern[:star], pattern[star+1:]
	if len(key) < len(prefix)+len(suffix) {
		return false
	}
	return strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix)
}

// extractPrefix возвращает часть ключа до первого ':'
func extractPrefix(key string) string {
	if idx := strings.Index(key, ":"); idx > 0 {
		return key[:idx]
	}
	return "other"
}
