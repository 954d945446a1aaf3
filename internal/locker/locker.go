// Package locker provides striped per-key mutual exclusion so operations on
// the same entity id are linearized without serializing unrelated entities.
package locker

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// KeyedMutex hashes keys onto a fixed set of mutexes. Two different keys may
// share a stripe; that only costs contention, never correctness.
type KeyedMutex struct {
	stripes []sync.Mutex
}

// New returns a KeyedMutex with the given stripe count (defaultStripes if n <= 0).
func New(n int) *KeyedMutex {
	if n <= 0 {
		n = defaultStripes
	}
	return &KeyedMutex{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key and returns its unlock function.
func (m *KeyedMutex) Lock(key string) func() {
	s := &m.stripes[m.index(key)]
	s.Lock()
	return s.Unlock
}

func (m *KeyedMutex) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.stripes)))
}
