package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType represents the type of a RESP value
type ValueType byte

const (
	// RESP value types
	TypeSimpleString ValueType = '+'
	TypeError        ValueType = '-'
	TypeInteger      ValueType = ':'
	TypeBulkString   ValueType = '$'
	TypeArray        ValueType = '*'
)

// String returns the RESP type name
func (t ValueType) String() string {
	switch t {
	case TypeSimpleString:
		return "simple-string"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulkString:
		return "bulk-string"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("unknown(%q)", byte(t))
	}
}

// Value is a decoded RESP value. The concrete type is one of SimpleString,
// BulkString, Error, Integer or Array.
type Value interface {
	// Type reports the RESP type byte of the value
	Type() ValueType

	// String returns a human readable representation for diagnostics
	String() string

	respValue()
}

// SimpleString is a "+text" value
type SimpleString string

// BulkString is a length-prefixed string. The zero value is the empty bulk
// string; Null marks the "$-1" form.
type BulkString struct {
	Text string
	Null bool
}

// Error is a "-TITLE message" value
type Error struct {
	Title   string
	Message string
}

// Integer is a ":n" value
type Integer int64

// Array is a "*count" value. An Array without items is the empty array;
// Null marks the "*-1" form.
type Array struct {
	Items []Value
	Null  bool
}

// NullBulkString is the "$-1" reply
var NullBulkString = BulkString{Null: true}

// NullArray is the "*-1" reply
var NullArray = Array{Null: true}

// NewBulkString returns a bulk string holding s
func NewBulkString(s string) BulkString {
	return BulkString{Text: s}
}

// NewArray returns an array of the given items. No items yields the empty array.
func NewArray(items ...Value) Array {
	if len(items) == 0 {
		return Array{}
	}
	return Array{Items: items}
}

// BulkStrings builds an array of bulk strings
func BulkStrings(items ...string) Array {
	values := make([]Value, len(items))
	for i, item := range items {
		values[i] = NewBulkString(item)
	}
	return NewArray(values...)
}

// NewError builds an error value from a full "TITLE message" line
func NewError(line string) Error {
	title, message, found := strings.Cut(line, " ")
	if !found {
		return Error{Title: line}
	}
	return Error{Title: title, Message: message}
}

func (SimpleString) Type() ValueType { return TypeSimpleString }
func (BulkString) Type() ValueType   { return TypeBulkString }
func (Error) Type() ValueType        { return TypeError }
func (Integer) Type() ValueType      { return TypeInteger }
func (Array) Type() ValueType        { return TypeArray }

func (SimpleString) respValue() {}
func (BulkString) respValue()   {}
func (Error) respValue()        {}
func (Integer) respValue()      {}
func (Array) respValue()        {}

func (s SimpleString) String() string { return string(s) }

func (b BulkString) String() string {
	if b.Null {
		return "(nil)"
	}
	return b.Text
}

// IsEmpty reports whether b is the empty (non-null) bulk string
func (b BulkString) IsEmpty() bool {
	return !b.Null && b.Text == ""
}

// Line returns the error as written on the wire, without the leading '-'
func (e Error) Line() string {
	if e.Message == "" {
		return e.Title
	}
	return e.Title + " " + e.Message
}

func (e Error) String() string { return e.Line() }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

func (a Array) String() string {
	if a.Null {
		return "(nil)"
	}
	parts := make([]string, len(a.Items))
	for i, item := range a.Items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Len returns the number of items in the array
func (a Array) Len() int {
	return len(a.Items)
}

// IsEmpty reports whether a is the empty (non-null) array
func (a Array) IsEmpty() bool {
	return !a.Null && len(a.Items) == 0
}

// Equal reports whether two values are structurally identical
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}

	switch av := a.(type) {
	case SimpleString:
		return av == b.(SimpleString)
	case BulkString:
		return av == b.(BulkString)
	case Error:
		return av == b.(Error)
	case Integer:
		return av == b.(Integer)
	case Array:
		bv := b.(Array)
		if av.Null != bv.Null || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
