package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gradebook/internal/metrics"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_TTL(t *testing.T) {
	// Arrange
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	// Act
	c.Set("courses:prof-1", []string{"CS101"}, time.Minute)

	// Assert
	v, ok := c.Get("courses:prof-1")
	require.True(t, ok)
	assert.Equal(t, []string{"CS101"}, v)

	clock.Advance(time.Minute)
	_, ok = c.Get("courses:prof-1")
	assert.True(t, ok, "entry is live at exactly its expiry")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("courses:prof-1")
	assert.False(t, ok)
	assert.False(t, c.Has("courses:prof-1"))
	assert.Equal(t, 0, c.Len(), "expired entry should be evicted on read")
}

func TestCache_HasEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	c.Set("k", 1, time.Second)

	clock.Advance(2 * time.Second)

	assert.False(t, c.Has("k"))
	assert.Equal(t, 0, c.Len())
}

func TestCache_Overwrite(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))

	c.Set("k", "first", time.Hour)
	c.Set("k", "second", time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, c.Len())

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "second set should replace the first expiry")
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)

	c.Delete("a")
	c.Delete("missing")
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Has("b"))
}

func TestCache_MaxEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(WithMaxEntries(2))

	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", 3, time.Hour)

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"))
	assert.True(t, c.Has("c"))
}

func TestCache_Unbounded(t *testing.T) {
	c := New(WithMaxEntries(0))
	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, time.Hour)
	}
	assert.Equal(t, 50, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(WithMaxEntries(16))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*i)%32)
				c.Set(key, i, time.Minute)
				c.Get(key)
				if i%10 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}

func lookups(t *testing.T, result string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, metrics.CacheRequests.WithLabelValues(result).Write(&m))
	return m.GetCounter().GetValue()
}

func TestCache_LookupMetrics(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	c.Set("a", 1, time.Minute)

	hits, misses := lookups(t, metrics.ResultHit), lookups(t, metrics.ResultMiss)

	_, _ = c.Get("a")
	_, _ = c.Get("b")
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"))

	if got := lookups(t, metrics.ResultHit) - hits; got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := lookups(t, metrics.ResultMiss) - misses; got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
}
