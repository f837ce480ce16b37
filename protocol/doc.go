// Package protocol implements the Redis Serialization Protocol (RESP)
// values, codec and streaming reader/writer used by the server.
//
// A decoded value is one of SimpleString, BulkString, Error, Integer or
// Array. Decode works on a byte buffer and returns the unconsumed tail:
//
//	rest, value, err := protocol.Decode(buf)
//	if errors.Is(err, protocol.ErrIncomplete) {
//		// wait for more input
//	}
//
// Reader wraps a connection and reassembles frames split across reads:
//
//	reader := protocol.NewReader(conn)
//	for {
//		value, err := reader.ReadNext()
//		if err != nil {
//			break
//		}
//		// Process value
//	}
//
// Encode produces the canonical wire form, so Decode(Encode(v)) yields v
// for every value. Arrays may nest at most MaxNestingDepth levels.
package protocol
