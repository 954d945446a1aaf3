// Package cache holds a process-local, write-through view of active sessions.
// The durable store is ground truth; entries are dropped (never patched) on
// any ambiguous failure and lazily reloaded on the next read-through.
package cache

import (
	"sync"

	"shiftwise/backend/internal/session/domain"
)

const shardCount = 16

type shard struct {
	mu sync.RWMutex
	m  map[string]*domain.Session
}

// Cache is a sharded in-memory map of active sessions keyed by session id.
type Cache struct {
	shards [shardCount]*shard
}

// New returns an empty session cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i] = &shard{m: make(map[string]*domain.Session)}
	}
	return c
}

// Get returns a copy of the cached session, or nil on a miss.
func (c *Cache) Get(id string) *domain.Session {
	s := c.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[id].Clone()
}

// Put stores a copy of the session. Call only after the durable write committed.
func (c *Cache) Put(sess *domain.Session) {
	if sess == nil || sess.ID == "" {
		return
	}
	s := c.shardFor(sess.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = sess.Clone()
}

// Delete drops the entry. Safe to call for ids never cached.
func (c *Cache) Delete(id string) {
	s := c.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}

// Len returns the number of cached sessions across all shards.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

func (c *Cache) shardFor(id string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h ^= uint32(id[i])
		h *= 16777619
	}
	return c.shards[h%shardCount]
}
