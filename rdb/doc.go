// Package rdb decodes Redis RDB snapshot files.
//
// Only string values are supported. Integers packed with the special
// length encoding are kept as integers and rendered as decimal text on
// demand. LZF compressed strings are rejected with ErrUnsupportedCompression.
//
// Decoding is forward-only. Parser streams records to a Handler; Decode and
// Load collect them into an immutable Snapshot:
//
//	snapshot, err := rdb.Load("/var/lib/redis/dump.rdb", nil)
//	if err != nil {
//		var decodeErr *rdb.DecodeError
//		if errors.As(err, &decodeErr) {
//			log.Printf("corrupt snapshot at byte %d", decodeErr.Offset)
//		}
//	}
//	for _, key := range snapshot.Keys() {
//		fmt.Println(key)
//	}
package rdb
