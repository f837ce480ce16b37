package rdb

import (
	"errors"
	"fmt"
)

// Snapshot decoding failures. A *DecodeError wraps exactly one of these,
// or io.ErrUnexpectedEOF when the input ends early.
var (
	// ErrBadMagic indicates the file does not start with "REDIS"
	ErrBadMagic = errors.New("bad magic")

	// ErrBadVersion indicates the 4-character version is not a decimal number
	ErrBadVersion = errors.New("bad version")

	// ErrBadLengthEncoding indicates a special encoding where a plain number is required
	ErrBadLengthEncoding = errors.New("bad length encoding")

	// ErrUnsupportedSpecialEncoding indicates a special selector other than 0-3
	ErrUnsupportedSpecialEncoding = errors.New("unsupported special encoding")

	// ErrUnsupportedCompression indicates an LZF compressed string
	ErrUnsupportedCompression = errors.New("compressed strings are not supported")

	// ErrUnsupportedValueType indicates a value type other than string
	ErrUnsupportedValueType = errors.New("unsupported value type")

	// ErrInvalidUTF8 indicates a plain string that is not valid UTF-8
	ErrInvalidUTF8 = errors.New("invalid utf-8 string")

	// ErrUnexpectedOpcode indicates a byte where a database selector or EOF was expected
	ErrUnexpectedOpcode = errors.New("unexpected opcode")
)

// DecodeError reports where and why snapshot decoding stopped
type DecodeError struct {
	Offset int64  // byte offset of the token that failed
	Op     string // "header", "aux", "database", "resize", "key", "value", ...
	Err    error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("rdb: %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

// Unwrap returns the wrapped error
func (e *DecodeError) Unwrap() error {
	return e.Err
}
