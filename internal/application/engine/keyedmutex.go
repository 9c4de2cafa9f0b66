package engine

import (
	"hash/fnv"
	"sync"
)

const mutexShards = 128

// KeyedMutex serializes event processing per user key. Keys hash onto a fixed
// shard table, so two users may occasionally share a lock; distinct users
// still proceed in parallel across shards and there is no global lock.
type KeyedMutex struct {
	shards [mutexShards]sync.Mutex
}

// NewKeyedMutex creates a KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the shard for key and returns its unlock function.
func (m *KeyedMutex) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	shard := &m.shards[h.Sum32()%mutexShards]
	shard.Lock()
	return shard.Unlock
}
