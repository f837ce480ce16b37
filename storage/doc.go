// Package storage holds the key-value store served to clients.
//
// Values expire passively: an expired key is removed the next time it is
// read, and there is no background sweep. Keys therefore may still list
// keys that a following Get would report as missing.
//
// Basic usage:
//
//	store := storage.NewMemory()
//	store.Seed(snapshot)
//	ttl := 100 * time.Millisecond
//	store.Set("key", protocol.NewBulkString("value"), &ttl)
//	value := store.Get("key")
//
// MemoryStorage has a single owner. ShardedStorage is safe for concurrent use.
package storage
