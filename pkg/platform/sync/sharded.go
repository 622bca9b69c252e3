package sync

import (
	"hash/fnv"
	"sync"
)

const shardCount = 64

// KeyedMutex serializes check-then-act sequences per resource key (wallet id,
// owner id) without a single global lock. Keys are hashed onto a fixed set of
// shards, so two distinct keys may share a shard; callers must therefore never
// hold one key's lock while acquiring another's.
type KeyedMutex struct {
	shards [shardCount]sync.Mutex
}

// NewKeyedMutex creates a KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the lock for key and returns the matching unlock function.
//
//	defer m.Lock("wallet:" + owner.String())()
func (m *KeyedMutex) Lock(key string) func() {
	shard := &m.shards[m.shardFor(key)]
	shard.Lock()
	return shard.Unlock
}

// WithLock runs fn while holding key's lock.
func (m *KeyedMutex) WithLock(key string, fn func() error) error {
	unlock := m.Lock(key)
	defer unlock()
	return fn()
}

func (m *KeyedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
