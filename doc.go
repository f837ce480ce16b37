// Package redisrdb provides a small RESP key-value server that bootstraps
// its dataset from a Redis RDB snapshot.
//
// At Start the server reads <dir>/<dbfilename> once. Each client connection
// then gets its own copy of the loaded keys, so writes on one connection are
// never seen by another. WithIsolation(IsolationShared) switches to a single
// store shared by every connection.
//
// Basic usage:
//
//	srv, err := redisrdb.New(
//		redisrdb.WithAddr(":6379"),
//		redisrdb.WithDir("/var/lib/redis"),
//		redisrdb.WithDBFilename("dump.rdb"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Close()
//
//	if err := srv.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// The server answers PING, ECHO, SET (with PX), GET, KEYS and CONFIG GET.
// Keys expire passively when they are read after their deadline.
//
// A missing snapshot file is not an error; an unreadable one is logged and
// reported by SnapshotErr. In both cases the server starts empty.
package redisrdb
