package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, maxSize int, ttl time.Duration) (*TTL[string], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return New[string](Config{MaxSize: maxSize, DefaultTTL: ttl, Now: clock.Now}), clock
}

func TestNew_Defaults(t *testing.T) {
	c := New[int](Config{})
	s := c.Stats()
	assert.Equal(t, DefaultMaxSize, s.MaxSize)
	assert.InDelta(t, DefaultTTL.Seconds(), s.DefaultTTLSeconds, 0.001)
	assert.Equal(t, 0, s.CurrentSize)
}

func TestTTL_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(2), s.TotalQueries)
	assert.InDelta(t, 50.0, s.HitRate, 0.001)
}

func TestTTL_Expiry(t *testing.T) {
	t.Run("visible before ttl elapses", func(t *testing.T) {
		c, clock := newTestCache(t, 10, 10*time.Second)
		c.Set("k", "v")
		clock.Advance(9 * time.Second)
		_, ok := c.Get("k")
		assert.True(t, ok)
	})

	t.Run("expired entry counts one eviction and one miss", func(t *testing.T) {
		c, clock := newTestCache(t, 10, 10*time.Second)
		c.Set("k", "v")
		clock.Advance(10 * time.Second)

		_, ok := c.Get("k")
		assert.False(t, ok)

		s := c.Stats()
		assert.Equal(t, int64(1), s.Evictions)
		assert.Equal(t, int64(1), s.Misses)
		assert.Equal(t, int64(0), s.Hits)
		assert.Equal(t, 0, s.CurrentSize)
	})

	t.Run("per-entry ttl overrides default", func(t *testing.T) {
		c, clock := newTestCache(t, 10, time.Hour)
		c.SetWithTTL("short", "v", time.Second)
		c.Set("long", "v")
		clock.Advance(2 * time.Second)

		_, ok := c.Get("short")
		assert.False(t, ok)
		_, ok = c.Get("long")
		assert.True(t, ok)
	})

	t.Run("overwrite restarts lifetime", func(t *testing.T) {
		c, clock := newTestCache(t, 10, 10*time.Second)
		c.Set("k", "old")
		clock.Advance(8 * time.Second)
		c.Set("k", "new")
		clock.Advance(8 * time.Second)

		got, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, "new", got)
	})
}

func TestTTL_EvictsOldestInsertion(t *testing.T) {
	c, clock := newTestCache(t, 2, time.Hour)

	c.Set("a", "1")
	clock.Advance(time.Second)
	c.Set("b", "2")
	clock.Advance(time.Second)

	// Reading "a" does not protect it; eviction is by insertion time.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", "3")

	_, ok = c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	s := c.Stats()
	assert.Equal(t, 2, s.CurrentSize)
	assert.Equal(t, int64(1), s.Evictions)
}

func TestTTL_EvictionTieBreaksOnInsertionOrder(t *testing.T) {
	// The clock never advances, so every createdAt is equal.
	c, _ := newTestCache(t, 3, time.Hour)
	c.Set("first", "1")
	c.Set("second", "2")
	c.Set("third", "3")
	c.Set("fourth", "4")

	_, ok := c.Get("first")
	assert.False(t, ok)
	for _, k := range []string{"second", "third", "fourth"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestTTL_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "1b")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestTTL_HitRateBounds(t *testing.T) {
	t.Run("no queries", func(t *testing.T) {
		c, _ := newTestCache(t, 10, time.Minute)
		assert.Zero(t, c.Stats().HitRate)
	})

	t.Run("all misses", func(t *testing.T) {
		c, _ := newTestCache(t, 10, time.Minute)
		c.Get("x")
		c.Get("y")
		assert.Zero(t, c.Stats().HitRate)
	})

	t.Run("all hits", func(t *testing.T) {
		c, _ := newTestCache(t, 10, time.Minute)
		c.Set("x", "1")
		c.Get("x")
		c.Get("x")
		assert.InDelta(t, 100.0, c.Stats().HitRate, 0.001)
	})
}

func TestTTL_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, c.Len())

	c.Get("b")
	c.Clear()
	assert.Equal(t, 0, c.Len())
	// Counters survive Clear.
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestTTL_PurgeExpired(t *testing.T) {
	c, clock := newTestCache(t, 10, 10*time.Second)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.Advance(5 * time.Second)
	c.Set("c", "3")
	clock.Advance(6 * time.Second)

	n := c.PurgeExpired()
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(2), c.Stats().Evictions)
	// Purging does not touch query counters.
	assert.Equal(t, int64(0), c.Stats().TotalQueries)
}

func TestTTL_Concurrent(t *testing.T) {
	c := New[int](Config{MaxSize: 50, DefaultTTL: time.Minute})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%80)
				c.Set(key, i)
				c.Get(key)
				if i%17 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	s := c.Stats()
	assert.LessOrEqual(t, s.CurrentSize, 50)
	assert.Equal(t, int64(8*200), s.TotalQueries)
}
