package storage

import (
	"time"

	"github.com/samber/lo"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
	"github.com/raniellyferreira/redis-rdb-server/rdb"
)

// MemoryStorage is a map-backed store with passive expiration. It has a
// single owner and is not safe for concurrent use; ShardedStorage wraps it
// with locks when sharing is needed.
type MemoryStorage struct {
	data map[string]Value
	now  func() time.Time

	expired int64
}

// NewMemory creates a new in-memory storage instance
func NewMemory(opts ...Option) *MemoryStorage {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStorage{
		data: make(map[string]Value),
		now:  o.now,
	}
}

// Set stores a value with an optional relative expiration
func (s *MemoryStorage) Set(key string, value protocol.Value, ttl *time.Duration) {
	expiration := NoExpiration()
	if ttl != nil {
		expiration = Relative(*ttl, s.now())
	}
	s.data[key] = Value{Data: value, Expiration: expiration}
}

// SetValue stores a prepared value as is
func (s *MemoryStorage) SetValue(key string, value Value) {
	s.data[key] = value
}

// Get retrieves a value by key, evicting it first if it has expired
func (s *MemoryStorage) Get(key string) protocol.Value {
	value, exists := s.data[key]
	if !exists {
		return protocol.NullBulkString
	}

	if value.IsExpired(s.now()) {
		delete(s.data, key)
		s.expired++
		return protocol.NullBulkString
	}

	return value.Data
}

// Keys returns every stored key in no particular order. Expired entries are
// only evicted by Get, so they may still be listed here.
func (s *MemoryStorage) Keys() []string {
	return lo.Keys(s.data)
}

// Del removes keys and returns the number that existed
func (s *MemoryStorage) Del(keys ...string) int64 {
	var deleted int64
	for _, key := range keys {
		if _, exists := s.data[key]; exists {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted
}

// Len returns the number of stored keys
func (s *MemoryStorage) Len() int {
	return len(s.data)
}

// ExpiredCount returns how many keys were evicted on access
func (s *MemoryStorage) ExpiredCount() int64 {
	return s.expired
}

// Seed copies every snapshot entry into the store. Entries with an
// expiry get an absolute deadline; a key present in several databases
// keeps the value from the last one.
func (s *MemoryStorage) Seed(snapshot *rdb.Snapshot) {
	if snapshot == nil {
		return
	}
	for _, db := range snapshot.Databases {
		for _, entry := range db.Entries {
			s.data[entry.Key.String()] = snapshotValue(entry)
		}
	}
}

func snapshotValue(entry rdb.Entry) Value {
	expiration := NoExpiration()
	if entry.Expiry != nil {
		expiration = Deadline(*entry.Expiry)
	}
	return Value{Data: entry.WireValue(), Expiration: expiration}
}
