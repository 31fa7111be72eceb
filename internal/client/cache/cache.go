// Package cache provides a bounded, expiring key-value cache for catalog
// responses. It is independent of any storage medium; Snapshot and Restore
// let callers persist it.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCapacity bounds a cache created with a non-positive capacity.
const DefaultCapacity = 256

// Entry is a cached value with the time it was stored.
type Entry[V any] struct {
	Key      string    `json:"key"`
	Value    V         `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// TTLCache is safe for concurrent use. When full, the oldest stored entry is
// evicted to make room.
type TTLCache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	now      func() time.Time
	order    *list.List // of *Entry[V], oldest at the front
	items    map[string]*list.Element
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a cache whose entries expire ttl after being stored.
func New[V any](ttl time.Duration, capacity int, opts ...Option) *TTLCache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &TTLCache[V]{
		ttl:      ttl,
		capacity: capacity,
		now:      o.now,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the value under key if it has not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*Entry[V])
	if c.expired(e) {
		return zero, false
	}
	return e.Value, true
}

// Peek returns the value under key regardless of expiry, and whether it is
// still fresh. Used to serve stale data when the origin is unavailable.
func (c *TTLCache[V]) Peek(key string) (value V, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, found := c.items[key]
	if !found {
		return value, false, false
	}
	e := el.Value.(*Entry[V])
	return e.Value, !c.expired(e), true
}

// Put stores value under key, replacing any previous entry.
func (c *TTLCache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(&Entry[V]{Key: key, Value: value, StoredAt: c.now()})
}

// Delete removes key.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// EvictExpired removes every expired entry and returns how many were removed.
func (c *TTLCache[V]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*Entry[V])
		if c.expired(e) {
			c.order.Remove(el)
			delete(c.items, e.Key)
			n++
		}
		el = next
	}
	return n
}

// Len returns the number of entries, expired ones included.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Snapshot returns all entries, oldest first.
func (c *TTLCache[V]) Snapshot() []Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry[V], 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Entry[V]))
	}
	return out
}

// Restore loads entries, keeping their original timestamps. Expired entries
// are kept so that they can still be served as stale data.
func (c *TTLCache[V]) Restore(entries []Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range entries {
		e := entries[i]
		c.insertLocked(&e)
	}
}

func (c *TTLCache[V]) insertLocked(e *Entry[V]) {
	if el, ok := c.items[e.Key]; ok {
		c.order.Remove(el)
		delete(c.items, e.Key)
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*Entry[V]).Key)
	}
	c.items[e.Key] = c.order.PushBack(e)
}

func (c *TTLCache[V]) expired(e *Entry[V]) bool {
	return c.now().Sub(e.StoredAt) >= c.ttl
}
