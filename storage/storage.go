package storage

import (
	"time"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
	"github.com/raniellyferreira/redis-rdb-server/rdb"
)

// Storage defines the interface for data storage operations
type Storage interface {
	// Set stores value under key, replacing any previous entry. A non-nil
	// ttl expires the key once that much time has passed since the call.
	Set(key string, value protocol.Value, ttl *time.Duration)

	// Get returns the stored value, or a null bulk string when the key is
	// absent or expired. Expired keys are removed on access.
	Get(key string) protocol.Value

	// Keys returns every stored key, including expired keys that have not
	// been read since they expired.
	Keys() []string

	// Del removes keys and returns how many existed. No command reaches
	// it; it is for programs embedding the server through Server.Storage.
	Del(keys ...string) int64

	// Len returns the number of stored keys
	Len() int

	// Seed copies every entry of snapshot into the store
	Seed(snapshot *rdb.Snapshot)
}

// Option configures a storage implementation
type Option func(*options)

type options struct {
	now    func() time.Time
	shards int
}

func defaultOptions() options {
	return options{
		now:    time.Now,
		shards: 16,
	}
}

// WithClock replaces time.Now, for deterministic expiration in tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithShardCount sets the number of shards used by ShardedStorage.
// The number is rounded up to the next power of 2.
func WithShardCount(count int) Option {
	return func(o *options) {
		if count > 0 {
			o.shards = nextPowerOf2(count)
		}
	}
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
