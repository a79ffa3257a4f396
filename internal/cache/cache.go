// Package cache provides an in-memory TTL cache keyed by operation key.
//
// Entries expire lazily: a read past an entry's expiry removes it and reports
// a miss. An optional size bound evicts the least recently used entry.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/JonMunkholm/gradebook/internal/metrics"
)

// entry is the element stored in the recency list.
type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a concurrency-safe TTL cache.
type Cache struct {
	mu         sync.Mutex
	ll         *list.List // front = most recently used
	items      map[string]*list.Element
	maxEntries int
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now. Tests use it to advance time without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxEntries bounds the cache. Zero or less means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ll:    list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key until now+ttl, replacing any existing entry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		c.ll.MoveToFront(elem)
		return
	}

	c.items[key] = c.ll.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})

	if c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		c.removeElement(c.ll.Back())
		metrics.CacheEvictions.Inc()
	}
}

// Get returns the value for key if present and not expired.
// An expired entry is removed before reporting the miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, result := c.lookup(key)
	metrics.RecordCacheLookup(result)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Has reports whether key holds a live entry. Same expiry rules as Get.
// It is not counted in the lookup metrics.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, _ := c.lookup(key)
	return e != nil
}

// lookup returns the live entry for key, or nil, with the lookup result.
// It must be called with c.mu held.
func (c *Cache) lookup(key string) (*entry, string) {
	elem, ok := c.items[key]
	if !ok {
		return nil, metrics.ResultMiss
	}

	e := elem.Value.(*entry)
	if e.expired(c.now()) {
		c.removeElement(elem)
		return nil, metrics.ResultExpired
	}

	c.ll.MoveToFront(elem)
	return e, metrics.ResultHit
}

// Delete removes key. Missing keys are ignored.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of stored entries, including expired ones not yet read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	e := c.ll.Remove(elem).(*entry)
	delete(c.items, e.key)
}
