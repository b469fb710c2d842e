package storage

import (
	"sync"
	"time"

	"github.com/thelabcorner/tracky/internal/metrics"
)

type entry struct {
	body    string
	expires time.Time
}

// Cache is a TTL-bounded response cache keyed by target URL. It stands
// in for platform-level outbound caching so hit/miss behavior is
// testable in-process. Expired entries are dropped lazily on read and
// by a background sweep.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry

	stop     chan struct{}
	stopOnce sync.Once
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{ttl: ttl, entries: make(map[string]entry), stop: make(chan struct{})}
	go c.sweep()
	return c
}

// Close stops the background sweeper. The cache itself stays usable;
// expired entries are then only dropped lazily on read. Idempotent.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		metrics.CacheEntriesGauge.Set(float64(len(c.entries)))
		c.mu.Unlock()
		return "", false
	}
	return e.body, true
}

func (c *Cache) Set(key, body string) {
	c.mu.Lock()
	c.entries[key] = entry{body: body, expires: time.Now().Add(c.ttl)}
	metrics.CacheEntriesGauge.Set(float64(len(c.entries)))
	c.mu.Unlock()
}

// Flush drops every entry and returns how many were evicted.
func (c *Cache) Flush() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	metrics.CacheEntriesGauge.Set(0)
	c.mu.Unlock()
	return n
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Background cleanup goroutine (best-effort, non-blocking).
func (c *Cache) sweep() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}
		now := time.Now()
		c.mu.Lock()
		for k, e := range c.entries {
			if e.expires.Before(now) {
				delete(c.entries, k)
			}
		}
		metrics.CacheEntriesGauge.Set(float64(len(c.entries)))
		c.mu.Unlock()
	}
}
