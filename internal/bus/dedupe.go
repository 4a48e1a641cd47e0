package bus

import (
	"sync"
	"time"
)

// DedupeCache suppresses replayed platform updates (webhook retries,
// reconnect replays). Keys are remembered for a sliding window and the cache
// is capped so an update storm cannot grow it without bound.
type DedupeCache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	window  time.Duration
	maxSize int
}

// NewDedupeCache creates a cache that remembers keys for window, holding at
// most maxSize entries.
func NewDedupeCache(window time.Duration, maxSize int) *DedupeCache {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &DedupeCache{
		seen:    make(map[string]time.Time),
		window:  window,
		maxSize: maxSize,
	}
}

// Seen records key and reports whether it was already present within the
// window. The first call for a key returns false; repeats return true until
// the window elapses.
func (c *DedupeCache) Seen(key string) bool {
	if key == "" {
		return false
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.seen[key]; ok && now.Sub(at) < c.window {
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.evict(now)
	}
	c.seen[key] = now
	return false
}

// evict drops expired entries; if everything is still fresh, drops the
// oldest entries until under half capacity. Callers hold c.mu.
func (c *DedupeCache) evict(now time.Time) {
	for k, at := range c.seen {
		if now.Sub(at) >= c.window {
			delete(c.seen, k)
		}
	}
	for len(c.seen) >= c.maxSize/2 {
		var oldestKey string
		var oldestAt time.Time
		for k, at := range c.seen {
			if oldestKey == "" || at.Before(oldestAt) {
				oldestKey, oldestAt = k, at
			}
		}
		delete(c.seen, oldestKey)
	}
}
