package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected protocol.Value
	}{
		{
			name:     "simple string",
			input:    "+OK\r\n",
			expected: protocol.SimpleString("OK"),
		},
		{
			name:     "error with message",
			input:    "-ERR unknown command 'asdf'\r\n",
			expected: protocol.Error{Title: "ERR", Message: "unknown command 'asdf'"},
		},
		{
			name:     "error without message",
			input:    "-World\r\n",
			expected: protocol.Error{Title: "World"},
		},
		{
			name:     "integer",
			input:    ":10\r\n",
			expected: protocol.Integer(10),
		},
		{
			name:     "negative integer",
			input:    ":-1000\r\n",
			expected: protocol.Integer(-1000),
		},
		{
			name:     "integer with plus sign",
			input:    ":+2000\r\n",
			expected: protocol.Integer(2000),
		},
		{
			name:     "bulk string",
			input:    "$5\r\nhello\r\n",
			expected: protocol.NewBulkString("hello"),
		},
		{
			name:     "empty bulk string",
			input:    "$0\r\n\r\n",
			expected: protocol.BulkString{},
		},
		{
			name:     "empty bulk string without body",
			input:    "$0\r\n",
			expected: protocol.BulkString{},
		},
		{
			name:     "null bulk string",
			input:    "$-1\r\n",
			expected: protocol.NullBulkString,
		},
		{
			name:     "bulk string with CRLF inside",
			input:    "$7\r\nab\r\ncde\r\n",
			expected: protocol.NewBulkString("ab\r\ncde"),
		},
		{
			name:     "empty array",
			input:    "*0\r\n",
			expected: protocol.Array{},
		},
		{
			name:     "null array",
			input:    "*-1\r\n",
			expected: protocol.NullArray,
		},
		{
			name:     "array of bulk strings",
			input:    "*2\r\n$5\r\nhello\r\n$5\r\nworld\r\n",
			expected: protocol.BulkStrings("hello", "world"),
		},
		{
			name:     "array of integers",
			input:    "*3\r\n:1\r\n:2\r\n:3\r\n",
			expected: protocol.NewArray(protocol.Integer(1), protocol.Integer(2), protocol.Integer(3)),
		},
		{
			name:  "mixed array",
			input: "*5\r\n:1\r\n:2\r\n:3\r\n:4\r\n$5\r\nhello\r\n",
			expected: protocol.NewArray(
				protocol.Integer(1), protocol.Integer(2), protocol.Integer(3), protocol.Integer(4),
				protocol.NewBulkString("hello"),
			),
		},
		{
			name:  "nested arrays",
			input: "*2\r\n*3\r\n:1\r\n:2\r\n:3\r\n*2\r\n+Hello\r\n-World\r\n",
			expected: protocol.NewArray(
				protocol.NewArray(protocol.Integer(1), protocol.Integer(2), protocol.Integer(3)),
				protocol.NewArray(protocol.SimpleString("Hello"), protocol.Error{Title: "World"}),
			),
		},
		{
			name:  "array with null element",
			input: "*3\r\n$5\r\nhello\r\n$-1\r\n$5\r\nworld\r\n",
			expected: protocol.NewArray(
				protocol.NewBulkString("hello"),
				protocol.NullBulkString,
				protocol.NewBulkString("world"),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest, value, err := protocol.Decode([]byte(tt.input))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if !protocol.Equal(value, tt.expected) {
				t.Errorf("Decode() = %v (%T), want %v (%T)", value, value, tt.expected, tt.expected)
			}

			if len(rest) != 0 {
				t.Errorf("Decode() left %q, want nothing", rest)
			}
		})
	}
}

func TestDecodeLeavesRemainder(t *testing.T) {
	input := "*2\r\n:1\r\n:2\r\n+NEXT\r\n:3\r\n"

	rest, value, err := protocol.Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	arr, ok := value.(protocol.Array)
	if !ok {
		t.Fatalf("Decode() = %T, want protocol.Array", value)
	}
	if arr.Len() != 2 {
		t.Errorf("Array length = %d, want 2", arr.Len())
	}

	if string(rest) != "+NEXT\r\n:3\r\n" {
		t.Errorf("remainder = %q, want %q", rest, "+NEXT\r\n:3\r\n")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		incomplete bool
	}{
		{name: "empty buffer", input: "", incomplete: true},
		{name: "missing terminator", input: "+OK", incomplete: true},
		{name: "truncated bulk body", input: "$5\r\nhel", incomplete: true},
		{name: "truncated array", input: "*2\r\n:1\r\n", incomplete: true},
		{name: "unknown type byte", input: "?what\r\n"},
		{name: "non-numeric integer", input: ":abc\r\n"},
		{name: "bare sign integer", input: ":-\r\n"},
		{name: "integer overflow", input: ":9223372036854775808\r\n"},
		{name: "non-numeric bulk length", input: "$x\r\nhello\r\n"},
		{name: "negative bulk length", input: "$-2\r\n"},
		{name: "bulk body without CRLF", input: "$3\r\nabcXY"},
		{name: "non-numeric array count", input: "*two\r\n"},
		{name: "negative array count", input: "*-5\r\n"},
		{name: "nested error element", input: "*1\r\n:nope\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := protocol.Decode([]byte(tt.input))
			if err == nil {
				t.Fatal("Decode() expected error but got none")
			}

			var decodeErr *protocol.DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("Decode() error = %T, want *protocol.DecodeError", err)
			}

			if got := errors.Is(err, protocol.ErrIncomplete); got != tt.incomplete {
				t.Errorf("errors.Is(err, ErrIncomplete) = %v, want %v (err: %v)", got, tt.incomplete, err)
			}
		})
	}
}

func TestDecodeIntegerBounds(t *testing.T) {
	_, value, err := protocol.Decode([]byte(":-9223372036854775808\r\n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if value != protocol.Integer(-9223372036854775808) {
		t.Errorf("Decode() = %v, want math.MinInt64", value)
	}

	_, value, err = protocol.Decode([]byte(":9223372036854775807\r\n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if value != protocol.Integer(9223372036854775807) {
		t.Errorf("Decode() = %v, want math.MaxInt64", value)
	}
}

func TestDecodeNestingLimit(t *testing.T) {
	deep := strings.Repeat("*1\r\n", protocol.MaxNestingDepth+1) + ":1\r\n"
	if _, _, err := protocol.Decode([]byte(deep)); err == nil {
		t.Fatal("Decode() expected nesting error")
	} else if errors.Is(err, protocol.ErrIncomplete) {
		t.Fatalf("nesting error must not be incomplete: %v", err)
	}

	ok := strings.Repeat("*1\r\n", protocol.MaxNestingDepth) + ":1\r\n"
	if _, _, err := protocol.Decode([]byte(ok)); err != nil {
		t.Fatalf("Decode() at depth limit error = %v", err)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		value    protocol.Value
		expected string
	}{
		{name: "simple string", value: protocol.SimpleString("OK"), expected: "+OK\r\n"},
		{name: "bulk string", value: protocol.NewBulkString("hey"), expected: "$3\r\nhey\r\n"},
		{name: "empty bulk string", value: protocol.BulkString{}, expected: "$0\r\n\r\n"},
		{name: "null bulk string", value: protocol.NullBulkString, expected: "$-1\r\n"},
		{name: "error", value: protocol.Error{Title: "ERR", Message: "boom"}, expected: "-ERR boom\r\n"},
		{name: "error without message", value: protocol.Error{Title: "WRONG"}, expected: "-WRONG\r\n"},
		{name: "integer", value: protocol.Integer(-42), expected: ":-42\r\n"},
		{name: "empty array", value: protocol.Array{}, expected: "*0\r\n"},
		{name: "null array", value: protocol.NullArray, expected: "*-1\r\n"},
		{
			name:     "nested array",
			value:    protocol.NewArray(protocol.BulkStrings("a"), protocol.Integer(1), protocol.NullArray),
			expected: "*3\r\n*1\r\n$1\r\na\r\n:1\r\n*-1\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(protocol.Encode(tt.value)); got != tt.expected {
				t.Errorf("Encode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	canonical := []string{
		"+OK\r\n",
		"-ERR unknown command 'foo'\r\n",
		"-World\r\n",
		":0\r\n",
		":-9332\r\n",
		"$5\r\nhello\r\n",
		"$0\r\n\r\n",
		"$-1\r\n",
		"*0\r\n",
		"*-1\r\n",
		"*2\r\n*3\r\n:1\r\n:2\r\n:3\r\n*2\r\n+Hello\r\n-World\r\n",
		"*3\r\n$5\r\nhello\r\n$-1\r\n*0\r\n",
	}

	for _, input := range canonical {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			rest, value, err := protocol.Decode([]byte(input))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(rest) != 0 {
				t.Fatalf("Decode() left %q", rest)
			}

			encoded := protocol.Encode(value)
			if string(encoded) != input {
				t.Errorf("Encode(Decode(x)) = %q, want %q", encoded, input)
			}

			_, again, err := protocol.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode(Encode(v)) error = %v", err)
			}
			if !protocol.Equal(again, value) {
				t.Errorf("Decode(Encode(v)) = %v, want %v", again, value)
			}
		})
	}
}

func TestEmptyTextBulkStringIsEmptyVariant(t *testing.T) {
	v := protocol.NewBulkString("")
	if !v.IsEmpty() {
		t.Fatal("NewBulkString(\"\") should be the empty variant")
	}

	_, decoded, err := protocol.Decode(protocol.Encode(v))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !protocol.Equal(decoded, v) {
		t.Errorf("Decode(Encode(\"\")) = %#v, want %#v", decoded, v)
	}
}

func TestReaderSequentialFrames(t *testing.T) {
	input := "*1\r\n$4\r\nPING\r\n+OK\r\n:5\r\n"
	reader := protocol.NewReader(strings.NewReader(input))

	expected := []protocol.Value{
		protocol.BulkStrings("PING"),
		protocol.SimpleString("OK"),
		protocol.Integer(5),
	}

	for i, want := range expected {
		value, err := reader.ReadNext()
		if err != nil {
			t.Fatalf("ReadNext() #%d error = %v", i, err)
		}
		if !protocol.Equal(value, want) {
			t.Errorf("ReadNext() #%d = %v, want %v", i, value, want)
		}
	}

	if _, err := reader.ReadNext(); err != io.EOF {
		t.Errorf("ReadNext() at end error = %v, want io.EOF", err)
	}
}

// chunkedReader hands out its input a few bytes per Read call
type chunkedReader struct {
	data  []byte
	chunk int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestReaderReassemblesSplitFrames(t *testing.T) {
	input := "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n*2\r\n$4\r\nECHO\r\n$3\r\nhey\r\n"

	for _, chunk := range []int{1, 2, 3, 7} {
		reader := protocol.NewReader(&chunkedReader{data: []byte(input), chunk: chunk})

		first, err := reader.ReadNext()
		if err != nil {
			t.Fatalf("chunk %d: ReadNext() error = %v", chunk, err)
		}
		if !protocol.Equal(first, protocol.BulkStrings("SET", "foo", "bar")) {
			t.Errorf("chunk %d: first = %v", chunk, first)
		}

		second, err := reader.ReadNext()
		if err != nil {
			t.Fatalf("chunk %d: ReadNext() error = %v", chunk, err)
		}
		if !protocol.Equal(second, protocol.BulkStrings("ECHO", "hey")) {
			t.Errorf("chunk %d: second = %v", chunk, second)
		}
	}
}

func TestReaderRecoversAfterMalformedFrame(t *testing.T) {
	reader := protocol.NewReader(&chunkedReader{data: []byte(":abc\r\n"), chunk: 64})

	_, err := reader.ReadNext()
	var decodeErr *protocol.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("ReadNext() error = %v, want *protocol.DecodeError", err)
	}
	if reader.Buffered() != 0 {
		t.Errorf("Buffered() = %d after malformed frame, want 0", reader.Buffered())
	}

	reader.Reset(strings.NewReader("+PONG\r\n"))
	value, err := reader.ReadNext()
	if err != nil {
		t.Fatalf("ReadNext() after Reset error = %v", err)
	}
	if value != protocol.SimpleString("PONG") {
		t.Errorf("ReadNext() = %v, want PONG", value)
	}
}

func TestReaderUnexpectedEOF(t *testing.T) {
	reader := protocol.NewReader(strings.NewReader("$10\r\nhello"))
	if _, err := reader.ReadNext(); err != io.ErrUnexpectedEOF {
		t.Errorf("ReadNext() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReaderSkipsBlankLines(t *testing.T) {
	reader := protocol.NewReader(strings.NewReader("$0\r\n\r\n\r\n+OK\r\n"))

	first, err := reader.ReadNext()
	if err != nil {
		t.Fatalf("ReadNext() error = %v", err)
	}
	if !protocol.Equal(first, protocol.BulkString{}) {
		t.Errorf("first = %#v, want empty bulk string", first)
	}

	second, err := reader.ReadNext()
	if err != nil {
		t.Fatalf("ReadNext() error = %v", err)
	}
	if second != protocol.SimpleString("OK") {
		t.Errorf("second = %v, want OK", second)
	}
}

func TestRESPWriter(t *testing.T) {
	var buf bytes.Buffer
	writer := protocol.NewWriter(&buf)

	// Test simple string
	err := writer.WriteSimpleString("OK")
	if err != nil {
		t.Fatalf("WriteSimpleString() error = %v", err)
	}
	writer.Flush()

	expected := "+OK\r\n"
	if buf.String() != expected {
		t.Errorf("WriteSimpleString() = %q, want %q", buf.String(), expected)
	}

	// Test bulk string
	buf.Reset()
	err = writer.WriteBulkString("hello")
	if err != nil {
		t.Fatalf("WriteBulkString() error = %v", err)
	}
	writer.Flush()

	expected = "$5\r\nhello\r\n"
	if buf.String() != expected {
		t.Errorf("WriteBulkString() = %q, want %q", buf.String(), expected)
	}

	// Test null bulk string
	buf.Reset()
	err = writer.WriteNullBulkString()
	if err != nil {
		t.Fatalf("WriteNullBulkString() error = %v", err)
	}
	writer.Flush()

	expected = "$-1\r\n"
	if buf.String() != expected {
		t.Errorf("WriteNullBulkString() = %q, want %q", buf.String(), expected)
	}

	// Test error
	buf.Reset()
	err = writer.WriteError("ERR unknown command 'FOO'")
	if err != nil {
		t.Fatalf("WriteError() error = %v", err)
	}
	writer.Flush()

	expected = "-ERR unknown command 'FOO'\r\n"
	if buf.String() != expected {
		t.Errorf("WriteError() = %q, want %q", buf.String(), expected)
	}

	// Test value
	buf.Reset()
	err = writer.WriteValue(protocol.NewArray(protocol.NewBulkString("dir"), protocol.NewBulkString("/tmp")))
	if err != nil {
		t.Fatalf("WriteValue() error = %v", err)
	}
	writer.Flush()

	expected = "*2\r\n$3\r\ndir\r\n$4\r\n/tmp\r\n"
	if buf.String() != expected {
		t.Errorf("WriteValue() = %q, want %q", buf.String(), expected)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name     string
		value    protocol.Value
		expected string
	}{
		{name: "simple string", value: protocol.SimpleString("OK"), expected: "OK"},
		{name: "integer", value: protocol.Integer(42), expected: "42"},
		{name: "null bulk string", value: protocol.NullBulkString, expected: "(nil)"},
		{name: "error", value: protocol.Error{Title: "ERR", Message: "unknown command"}, expected: "ERR unknown command"},
		{name: "array", value: protocol.BulkStrings("a", "b"), expected: "[a, b]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.value.String()
			if result != tt.expected {
				t.Errorf("String() = %q, want %q", result, tt.expected)
			}
		})
	}
}
