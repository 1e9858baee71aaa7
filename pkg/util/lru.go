// Package util holds small shared data structures.
package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

type lruEntry[K comparable, V any] struct {
	key        K
	value      V
	expiration time.Time
}

// LRUCache is a thread-safe fixed-capacity cache with optional per-entry
// expiry. Expired entries are evicted lazily on access.
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	ll    *list.List
	items map[K]*list.Element
}

// NewLRU creates a cache holding at most capacity entries. ttl of zero means
// entries never expire.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) (*LRUCache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("lru capacity must be positive, got %d", capacity)
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
	}, nil
}

// Get returns the cached value and whether it was present and fresh.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	ent := el.Value.(*lruEntry[K, V])
	if c.ttl > 0 && time.Now().After(ent.expiration) {
		c.removeLocked(el)
		var zero V
		return zero, false
	}
	c.ll.MoveToFront(el)
	return ent.value, true
}

// Put inserts or refreshes a value, evicting the least recently used entry
// when the cache is full.
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*lruEntry[K, V])
		ent.value = value
		ent.expiration = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}

	ent := &lruEntry[K, V]{key: key, value: value, expiration: time.Now().Add(c.ttl)}
	c.items[key] = c.ll.PushFront(ent)

	for c.ll.Len() > c.capacity {
		c.removeLocked(c.ll.Back())
	}
}

// Len reports the number of entries currently held, expired or not.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRUCache[K, V]) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	ent := el.Value.(*lruEntry[K, V])
	delete(c.items, ent.key)
	c.ll.Remove(el)
}
