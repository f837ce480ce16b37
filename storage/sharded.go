package storage

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
	"github.com/raniellyferreira/redis-rdb-server/rdb"
)

// shard is a MemoryStorage guarded by its own lock
type shard struct {
	mu  sync.Mutex
	mem *MemoryStorage
}

// ShardedStorage is a Storage that is safe for concurrent use. Keys are
// spread over independently locked shards by xxhash.
type ShardedStorage struct {
	shards    []shard
	shardMask uint64
}

// NewSharded creates a concurrent store with 16 shards unless
// WithShardCount says otherwise
func NewSharded(opts ...Option) *ShardedStorage {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &ShardedStorage{
		shards:    make([]shard, o.shards),
		shardMask: uint64(o.shards - 1),
	}
	for i := range s.shards {
		s.shards[i].mem = NewMemory(WithClock(o.now))
	}
	return s
}

// keyShard returns the shard owning key
func (s *ShardedStorage) keyShard(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)&s.shardMask]
}

// ShardCount returns the number of shards
func (s *ShardedStorage) ShardCount() int {
	return len(s.shards)
}

// Set stores a value with an optional relative expiration
func (s *ShardedStorage) Set(key string, value protocol.Value, ttl *time.Duration) {
	sh := s.keyShard(key)
	sh.mu.Lock()
	sh.mem.Set(key, value, ttl)
	sh.mu.Unlock()
}

// Get retrieves a value by key, evicting it first if it has expired
func (s *ShardedStorage) Get(key string) protocol.Value {
	sh := s.keyShard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.mem.Get(key)
}

// Keys returns every stored key across all shards
func (s *ShardedStorage) Keys() []string {
	return lo.FlatMap(lo.Range(len(s.shards)), func(i int, _ int) []string {
		sh := &s.shards[i]
		sh.mu.Lock()
		defer sh.mu.Unlock()
		return sh.mem.Keys()
	})
}

// Del removes keys and returns the number that existed
func (s *ShardedStorage) Del(keys ...string) int64 {
	var deleted int64
	for _, key := range keys {
		sh := s.keyShard(key)
		sh.mu.Lock()
		deleted += sh.mem.Del(key)
		sh.mu.Unlock()
	}
	return deleted
}

// Len returns the number of stored keys
func (s *ShardedStorage) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += sh.mem.Len()
		sh.mu.Unlock()
	}
	return n
}

// ExpiredCount returns how many keys were evicted on access
func (s *ShardedStorage) ExpiredCount() int64 {
	var n int64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += sh.mem.ExpiredCount()
		sh.mu.Unlock()
	}
	return n
}

// Seed copies every snapshot entry into the store
func (s *ShardedStorage) Seed(snapshot *rdb.Snapshot) {
	if snapshot == nil {
		return
	}
	for _, db := range snapshot.Databases {
		for _, entry := range db.Entries {
			key := entry.Key.String()
			sh := s.keyShard(key)
			sh.mu.Lock()
			sh.mem.SetValue(key, snapshotValue(entry))
			sh.mu.Unlock()
		}
	}
}
