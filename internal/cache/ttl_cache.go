package cache

import (
	"sync"
	"time"
)

type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu         sync.RWMutex
	items      map[K]entry[V]
	now        func() time.Time
	maxEntries int
	nextPurge  time.Time
}

// NewTTLCache returns an in-memory cache holding at most maxEntries keys
// (unbounded when maxEntries <= 0). Expired entries are dropped on read and
// swept from Set once the soonest recorded expiry has passed.
func NewTTLCache[K comparable, V any](maxEntries int) Cache[K, V] {
	c := newTTLCache[K, V](time.Now)
	c.maxEntries = maxEntries
	return c
}

func newTTLCache[K comparable, V any](now func() time.Time) *ttlCache[K, V] {
	return &ttlCache[K, V]{items: make(map[K]entry[V]), now: now}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(item.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return item.value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	expiresAt := now.Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nextPurge.IsZero() && !now.Before(c.nextPurge) {
		c.purgeLocked(now)
	}
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.purgeLocked(now)
		if len(c.items) >= c.maxEntries {
			c.evictSoonestLocked()
		}
	}
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	if c.nextPurge.IsZero() || expiresAt.Before(c.nextPurge) {
		c.nextPurge = expiresAt
	}
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// purgeLocked drops expired entries and recomputes the next sweep time.
func (c *ttlCache[K, V]) purgeLocked(now time.Time) {
	c.nextPurge = time.Time{}
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
			continue
		}
		if c.nextPurge.IsZero() || item.expiresAt.Before(c.nextPurge) {
			c.nextPurge = item.expiresAt
		}
	}
}

func (c *ttlCache[K, V]) evictSoonestLocked() {
	var (
		victim  K
		soonest time.Time
		found   bool
	)
	for key, item := range c.items {
		if !found || item.expiresAt.Before(soonest) {
			victim, soonest, found = key, item.expiresAt, true
		}
	}
	if found {
		delete(c.items, victim)
	}
}
