// Package cache provides a sharded in-memory cache with per-entry age.
package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Sharded is a concurrent cache split across shards. Entries older than the
// ttl are treated as missing; a zero ttl keeps entries until deleted.
type Sharded[V any] struct {
	ttl    time.Duration
	shards [numShards]*shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
}

type entry[V any] struct {
	value     V
	updatedAt time.Time
}

// New creates a new sharded cache.
func New[V any](ttl time.Duration) *Sharded[V] {
	c := &Sharded[V]{ttl: ttl}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}
	return c
}

// getShard returns the shard for the given key.
func (c *Sharded[V]) getShard(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a value.
func (c *Sharded[V]) Set(key string, value V) {
	s := c.getShard(key)
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Get retrieves a live value.
func (c *Sharded[V]) Get(key string) (V, bool) {
	v, age, ok := c.GetWithAge(key)
	if !ok || (c.ttl > 0 && age > c.ttl) {
		var zero V
		return zero, false
	}
	return v, true
}

// GetWithAge retrieves a value and its age, ignoring the ttl.
func (c *Sharded[V]) GetWithAge(key string) (V, time.Duration, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		var zero V
		return zero, 0, false
	}
	return e.value, time.Since(e.updatedAt), true
}

// Delete removes a key.
func (c *Sharded[V]) Delete(key string) {
	s := c.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns total items across all shards.
func (c *Sharded[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries older than maxAge.
func (c *Sharded[V]) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.updatedAt.Before(cutoff) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Reset drops every entry.
func (c *Sharded[V]) Reset() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]entry[V])
		s.mu.Unlock()
	}
}
