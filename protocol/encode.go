package protocol

import (
	"strconv"
)

// Encode returns the wire form of v
func Encode(v Value) []byte {
	return AppendValue(nil, v)
}

// AppendValue appends the wire form of v to dst and returns the extended buffer
func AppendValue(dst []byte, v Value) []byte {
	switch val := v.(type) {
	case SimpleString:
		dst = append(dst, byte(TypeSimpleString))
		dst = append(dst, val...)
		return append(dst, CRLF...)

	case BulkString:
		if val.Null {
			return append(dst, "$-1\r\n"...)
		}
		dst = append(dst, byte(TypeBulkString))
		dst = strconv.AppendInt(dst, int64(len(val.Text)), 10)
		dst = append(dst, CRLF...)
		dst = append(dst, val.Text...)
		return append(dst, CRLF...)

	case Error:
		dst = append(dst, byte(TypeError))
		dst = append(dst, val.Line()...)
		return append(dst, CRLF...)

	case Integer:
		dst = append(dst, byte(TypeInteger))
		dst = strconv.AppendInt(dst, int64(val), 10)
		return append(dst, CRLF...)

	case Array:
		if val.Null {
			return append(dst, "*-1\r\n"...)
		}
		dst = append(dst, byte(TypeArray))
		dst = strconv.AppendInt(dst, int64(len(val.Items)), 10)
		dst = append(dst, CRLF...)
		for _, item := range val.Items {
			dst = AppendValue(dst, item)
		}
		return dst

	default:
		// nil is not a RESP value; encode it the way Redis encodes a missing reply
		return append(dst, "$-1\r\n"...)
	}
}
