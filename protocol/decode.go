package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

const (
	// CRLF is the Redis protocol line terminator
	CRLF = "\r\n"

	// MaxNestingDepth bounds how deeply arrays may nest inside one frame
	MaxNestingDepth = 64

	// maxBulkSize is the maximum size for bulk strings (512MB)
	maxBulkSize = 512 * 1024 * 1024

	// maxArraySize is the maximum size for arrays
	maxArraySize = 1024 * 1024

	// maxLineLength bounds a header or simple line that has no terminator yet
	maxLineLength = 64 * 1024

	// minValueSize is the length of the shortest encoded value, e.g. "+\r\n"
	minValueSize = 3
)

var (
	crlfBytes = []byte(CRLF)

	// ErrIncomplete reports that the buffer ends before the frame does.
	// More input may turn it into a valid value.
	ErrIncomplete = errors.New("incomplete frame")
)

// DecodeError describes a frame that could not be decoded
type DecodeError struct {
	Offset     int
	Message    string
	Incomplete bool
	// Need is a lower bound on the bytes that must follow the buffer
	// before the frame can complete. Only set when Incomplete is true.
	Need int
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol error at offset %d: %s", e.Offset, e.Message)
}

// Unwrap exposes ErrIncomplete for premature end of buffer
func (e *DecodeError) Unwrap() error {
	if e.Incomplete {
		return ErrIncomplete
	}
	return nil
}

// Decode decodes the first RESP value in buf and returns the bytes that follow it.
func Decode(buf []byte) ([]byte, Value, error) {
	d := decoder{buf: buf}
	v, err := d.value(0)
	if err != nil {
		return buf, nil, err
	}
	return buf[d.pos:], v, nil
}

// decoder walks buf forward; pos never moves backwards
type decoder struct {
	buf []byte
	pos int
	// pending is the minimum size of the array elements still owed by
	// enclosing arrays after the value being decoded
	pending int64
}

// incomplete reports a frame cut short; need is the lower bound on missing
// bytes for the value being decoded itself
func (d *decoder) incomplete(what string, need int) error {
	return &DecodeError{
		Offset:     d.pos,
		Message:    "unexpected end of input reading " + what,
		Incomplete: true,
		Need:       need + int(d.pending),
	}
}

func (d *decoder) malformed(format string, args ...interface{}) error {
	return &DecodeError{Offset: d.pos, Message: fmt.Sprintf(format, args...)}
}

func (d *decoder) value(depth int) (Value, error) {
	if d.pos >= len(d.buf) {
		return nil, d.incomplete("type byte", minValueSize)
	}

	typeByte := d.buf[d.pos]
	d.pos++

	switch ValueType(typeByte) {
	case TypeSimpleString:
		line, err := d.line("simple string")
		if err != nil {
			return nil, err
		}
		return SimpleString(line), nil

	case TypeError:
		line, err := d.line("error")
		if err != nil {
			return nil, err
		}
		return NewError(string(line)), nil

	case TypeInteger:
		line, err := d.line("integer")
		if err != nil {
			return nil, err
		}
		n, err := parseInt64(line)
		if err != nil {
			return nil, d.malformed("invalid integer: %q", line)
		}
		return Integer(n), nil

	case TypeBulkString:
		return d.bulkString()

	case TypeArray:
		return d.array(depth)

	default:
		d.pos--
		return nil, d.malformed("unknown RESP type: %q (0x%02x)", typeByte, typeByte)
	}
}

func (d *decoder) bulkString() (Value, error) {
	line, err := d.line("bulk string length")
	if err != nil {
		return nil, err
	}

	length, err := parseInt64(line)
	if err != nil {
		return nil, d.malformed("invalid bulk string length: %q", line)
	}

	switch {
	case length == -1:
		return NullBulkString, nil
	case length == 0:
		// the empty body is optional, but a lone CR may be half of it
		rest := d.buf[d.pos:]
		if len(rest) == 1 && rest[0] == '\r' {
			return nil, d.incomplete("bulk string body", 1)
		}
		if bytes.HasPrefix(rest, crlfBytes) {
			d.pos += len(crlfBytes)
		}
		return BulkString{}, nil
	case length < 0 || length > maxBulkSize:
		return nil, d.malformed("invalid bulk string length: %d", length)
	}

	end := d.pos + int(length)
	if end+len(crlfBytes) > len(d.buf) {
		return nil, d.incomplete("bulk string body", end+len(crlfBytes)-len(d.buf))
	}
	if !bytes.Equal(d.buf[end:end+len(crlfBytes)], crlfBytes) {
		return nil, d.malformed("expected CRLF terminator [13, 10], got [%d, %d]", d.buf[end], d.buf[end+1])
	}

	text := string(d.buf[d.pos:end])
	d.pos = end + len(crlfBytes)
	return BulkString{Text: text}, nil
}

func (d *decoder) array(depth int) (Value, error) {
	line, err := d.line("array length")
	if err != nil {
		return nil, err
	}

	count, err := parseInt64(line)
	if err != nil {
		return nil, d.malformed("invalid array length: %q", line)
	}

	switch {
	case count == -1:
		return NullArray, nil
	case count == 0:
		return Array{}, nil
	case count < 0 || count > maxArraySize:
		return nil, d.malformed("invalid array length: %d", count)
	}

	if depth+1 > MaxNestingDepth {
		return nil, d.malformed("array nesting exceeds %d levels", MaxNestingDepth)
	}

	// every element needs at least minValueSize bytes, so don't trust count for the allocation
	capacity := count
	if remaining := int64(len(d.buf)-d.pos) / minValueSize; capacity > remaining {
		capacity = remaining
	}

	items := make([]Value, 0, capacity)
	for i := int64(0); i < count; i++ {
		owed := (count - i - 1) * minValueSize
		d.pending += owed
		item, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		d.pending -= owed
		items = append(items, item)
	}

	return Array{Items: items}, nil
}

// line returns the bytes up to the next CRLF and moves past it
func (d *decoder) line(what string) ([]byte, error) {
	rest := d.buf[d.pos:]
	idx := bytes.Index(rest, crlfBytes)
	if idx < 0 {
		if len(rest) > maxLineLength {
			return nil, d.malformed("%s line exceeds %d bytes without CRLF terminator", what, maxLineLength)
		}
		need := len(crlfBytes)
		if len(rest) > 0 && rest[len(rest)-1] == '\r' {
			need = 1
		}
		return nil, d.incomplete(what, need)
	}

	line := rest[:idx]
	d.pos += idx + len(crlfBytes)
	return line, nil
}

// parseInt64 parses an int64 from a byte slice without allocation.
// A leading '+' is accepted.
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	var i int

	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}

	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n uint64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}

		if n > (1<<63)/10 {
			return 0, strconv.ErrRange
		}
		n = n*10 + uint64(b[i]-'0')

		// math.MinInt64 has no positive counterpart
		if n > 1<<63 || (!neg && n > 1<<63-1) {
			return 0, strconv.ErrRange
		}
	}

	if neg {
		return -int64(n), nil
	}
	return int64(n), nil
}
