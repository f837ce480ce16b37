// Package server serves RESP clients over TCP.
//
// Each accepted connection gets a store from a StoreFactory. PerConnection
// seeds a private store from a decoded snapshot, so a SET on one connection
// is invisible to every other connection. Shared hands all connections the
// same concurrent store instead.
//
// Supported commands are PING, ECHO, SET (with optional PX), GET, KEYS and
// CONFIG GET. Every request receives exactly one reply, in order. A
// malformed frame is answered with a protocol error and the connection stays
// open.
//
//	srv := server.NewServer(":6379", server.PerConnection(snapshot),
//		server.StaticConfig{Dir: "/data", DBFilename: "dump.rdb"})
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
package server
