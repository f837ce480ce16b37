package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
)

// TestShardedStorageConcurrency tests concurrent access to sharded storage
func TestShardedStorageConcurrency(t *testing.T) {
	stor := NewSharded()

	numGoroutines := 50
	numOperations := 100

	var wg sync.WaitGroup

	t.Run("ConcurrentSet", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := fmt.Sprintf("key_%d_%d", id, j)
					stor.Set(key, protocol.NewBulkString(fmt.Sprintf("value_%d_%d", id, j)), nil)
				}
			}(i)
		}
		wg.Wait()

		if stor.Len() != numGoroutines*numOperations {
			t.Errorf("Len() = %d, want %d", stor.Len(), numGoroutines*numOperations)
		}
	})

	t.Run("ConcurrentGet", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := fmt.Sprintf("key_%d_%d", id, j)
					want := protocol.NewBulkString(fmt.Sprintf("value_%d_%d", id, j))
					if got := stor.Get(key); !protocol.Equal(got, want) {
						t.Errorf("Get(%s) = %v, want %v", key, got, want)
					}
				}
			}(i)
		}
		wg.Wait()
	})

	t.Run("ConcurrentDel", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					stor.Del(fmt.Sprintf("key_%d_%d", id, j))
				}
			}(i)
		}
		wg.Wait()
	})

	if finalCount := stor.Len(); finalCount != 0 {
		t.Errorf("Expected 0 keys after deletion, got %d", finalCount)
	}
}

// TestShardedStorageConcurrentExpiration races readers on keys that expire immediately
func TestShardedStorageConcurrentExpiration(t *testing.T) {
	stor := NewSharded()
	zero := time.Duration(0)

	for i := 0; i < 100; i++ {
		stor.Set(fmt.Sprintf("key_%d", i), protocol.NewBulkString("v"), &zero)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if got := stor.Get(fmt.Sprintf("key_%d", i)); !protocol.Equal(got, protocol.NullBulkString) {
					t.Errorf("Get() = %v, want null", got)
				}
			}
		}()
	}
	wg.Wait()

	if stor.Len() != 0 {
		t.Errorf("Len() = %d, want 0", stor.Len())
	}
	if stor.ExpiredCount() != 100 {
		t.Errorf("ExpiredCount() = %d, want 100 (each key evicted once)", stor.ExpiredCount())
	}
}

func TestShardCount(t *testing.T) {
	tests := []struct {
		requested int
		expected  int
	}{
		{0, 16},
		{1, 1},
		{3, 4},
		{16, 16},
		{100, 128},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("requested_%d", tt.requested), func(t *testing.T) {
			stor := NewSharded(WithShardCount(tt.requested))
			if stor.ShardCount() != tt.expected {
				t.Errorf("ShardCount() = %d, want %d", stor.ShardCount(), tt.expected)
			}
		})
	}
}

// TestShardDistribution checks that keys spread over every shard
func TestShardDistribution(t *testing.T) {
	stor := NewSharded(WithShardCount(8))

	for i := 0; i < 8000; i++ {
		stor.Set(fmt.Sprintf("key:%d", i), protocol.NewBulkString("v"), nil)
	}

	for i := range stor.shards {
		n := stor.shards[i].mem.Len()
		// an even spread is 1000 per shard
		if n < 700 || n > 1300 {
			t.Errorf("shard %d holds %d keys, distribution too skewed", i, n)
		}
	}

	if len(stor.Keys()) != 8000 {
		t.Errorf("Keys() returned %d keys, want 8000", len(stor.Keys()))
	}
}
