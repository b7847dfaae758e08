// Package cache provides an in-memory TTL cache with bounded size.
//
// Eviction at capacity removes the entry with the oldest insertion time, not
// the least recently read one. That is a known limitation kept on purpose:
// a frequently read entry can still be evicted once it is the oldest.
package cache

import (
	"sync"
	"time"
)

// Defaults used when a Config leaves a field zero.
const (
	DefaultMaxSize = 1000
	DefaultTTL     = time.Hour
)

// Config configures a TTL cache.
type Config struct {
	MaxSize    int
	DefaultTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
	seq       uint64 // insertion order, breaks createdAt ties
}

func (e *entry[V]) expired(now time.Time) bool {
	return !now.Before(e.createdAt.Add(e.ttl))
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits              int64   `json:"hits"`
	Misses            int64   `json:"misses"`
	Evictions         int64   `json:"evictions"`
	TotalQueries      int64   `json:"total_queries"`
	HitRate           float64 `json:"hit_rate"`
	CurrentSize       int     `json:"current_size"`
	MaxSize           int     `json:"max_size"`
	DefaultTTLSeconds float64 `json:"default_ttl_seconds"`
}

// TTL is a thread-safe cache whose entries expire a fixed time after they
// were stored. Expired entries are removed lazily on Get or by PurgeExpired.
// A single mutex guards the whole store; no method blocks on I/O.
type TTL[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	seq        uint64

	hits      int64
	misses    int64
	evictions int64
}

// New creates a TTL cache from cfg, applying defaults for zero fields.
func New[V any](cfg Config) *TTL[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TTL[V]{
		entries:    make(map[string]*entry[V], cfg.MaxSize),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Now,
	}
}

// Get returns the value stored under key if it has not expired. An expired
// entry is removed and counted as one eviction and one miss.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.evictions++
		c.misses++
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value under key, replacing any existing entry and
// restarting its lifetime. A non-positive ttl means the default TTL. When a
// new key is inserted into a full cache, the entry with the oldest insertion
// time is evicted first.
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.seq++
	c.entries[key] = &entry[V]{value: value, createdAt: c.now(), ttl: ttl, seq: c.seq}
}

// evictOldestLocked removes the entry with the smallest createdAt.
// c.mu must be held.
func (c *TTL[V]) evictOldestLocked() {
	var oldestKey string
	var oldest *entry[V]
	for k, e := range c.entries {
		if oldest == nil || e.createdAt.Before(oldest.createdAt) ||
			(e.createdAt.Equal(oldest.createdAt) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Delete removes key. It reports whether an entry was present.
func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// PurgeExpired removes every expired entry and returns how many were removed.
// Removed entries count as evictions.
func (c *TTL[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	c.evictions += int64(n)
	return n
}

// Clear removes all entries. Counters are kept.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V], c.maxSize)
}

// Len returns the number of stored entries, including expired ones not yet
// removed.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *TTL[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Hits:              c.hits,
		Misses:            c.misses,
		Evictions:         c.evictions,
		TotalQueries:      total,
		HitRate:           rate,
		CurrentSize:       len(c.entries),
		MaxSize:           c.maxSize,
		DefaultTTLSeconds: c.defaultTTL.Seconds(),
	}
}
