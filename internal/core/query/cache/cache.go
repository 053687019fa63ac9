// Package cache provides an LRU cache for analyzed statements and
// compiled queries.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// LRU is an LRU cache with TTL support. The zero TTL keeps entries until
// they are evicted.
type LRU[V any] struct {
	mu         sync.Mutex
	data       map[string]*node[V]
	maxSize    int
	defaultTTL time.Duration
	head       *node[V]
	tail       *node[V]
	stats      Stats
	now        func() time.Time
	onEvict    func(key string, value V)
}

// node is an entry in the doubly-linked recency list
type node[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *node[V]
	next      *node[V]
}

// New creates a new LRU cache. A maxSize below one disables caching.
func New[V any](maxSize int, defaultTTL time.Duration) *LRU[V] {
	return &LRU[V]{
		data:       make(map[string]*node[V]),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		stats:      Stats{MaxSize: maxSize},
		now:        time.Now,
	}
}

// OnEvict registers fn to run when an entry leaves the cache by
// eviction, expiry, invalidation or Clear. It runs with the cache locked.
func (c *LRU[V]) OnEvict(fn func(key string, value V)) *LRU[V] {
	c.onEvict = fn
	return c
}

// Get retrieves a value from the cache
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if !n.expiresAt.IsZero() && c.now().After(n.expiresAt) {
		c.remove(n)
		c.stats.Misses++
		return zero, false
	}

	c.moveToFront(n)
	c.stats.Hits++
	return n.value, true
}

// Set stores a value. A zero ttl uses the default TTL.
func (c *LRU[V]) Set(key string, value V, ttl time.Duration) {
	if c.maxSize < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if n, exists := c.data[key]; exists {
		n.value = value
		n.expiresAt = expiresAt
		c.moveToFront(n)
		return
	}

	if len(c.data) >= c.maxSize && c.tail != nil {
		c.remove(c.tail)
		c.stats.Evictions++
	}
	n := &node[V]{key: key, value: value, expiresAt: expiresAt}
	c.addToFront(n)
	c.data[key] = n
}

// GetOrLoad returns the cached value for key, or stores and returns the
// result of load. Errors are not cached.
func (c *LRU[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, 0)
	return v, nil
}

// Invalidate removes a specific key from the cache
func (c *LRU[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.data[key]; ok {
		c.remove(n)
	}
}

// InvalidatePattern removes all keys matching a pattern.
// Pattern format: "prefix:*" or "*:suffix" or "*:middle:*"
func (c *LRU[V]) InvalidatePattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, n := range c.data {
		if matchesPattern(key, pattern) {
			c.remove(n)
		}
	}
}

// Clear removes all entries and resets the statistics.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for key, n := range c.data {
			c.onEvict(key, n.value)
		}
	}
	c.data = make(map[string]*node[V])
	c.head = nil
	c.tail = nil
	c.stats = Stats{MaxSize: c.maxSize}
}

// Stats returns cache statistics
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.data)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Len returns the number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *LRU[V]) addToFront(n *node[V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[V]) moveToFront(n *node[V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.addToFront(n)
}

func (c *LRU[V]) unlink(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *LRU[V]) remove(n *node[V]) {
	c.unlink(n)
	delete(c.data, n.key)
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}

// matchesPattern checks if a key matches a pattern
func matchesPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, ":")
	keyParts := strings.SplitN(key, ":", len(parts))
	if len(parts) != len(keyParts) {
		return false
	}
	for i, part := range parts {
		if part != "*" && part != keyParts[i] {
			return false
		}
	}
	return true
}

// Key builds a cache key of the form "kind:hash" from statement text.
func Key(kind, sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return kind + ":" + hex.EncodeToString(sum[:8])
}
