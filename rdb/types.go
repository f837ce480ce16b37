package rdb

import (
	"strconv"
	"time"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
)

// String is a string as stored in a snapshot: either raw text or an
// integer packed with a special encoding.
type String struct {
	text    string
	integer int32
	isInt   bool
}

// Text returns a String holding s
func Text(s string) String {
	return String{text: s}
}

// Integer returns a String holding the integer n
func Integer(n int32) String {
	return String{integer: n, isInt: true}
}

// IsInteger reports whether the string was integer encoded
func (s String) IsInteger() bool {
	return s.isInt
}

// Int returns the integer value and whether s is integer encoded
func (s String) Int() (int32, bool) {
	return s.integer, s.isInt
}

// String returns the text form; integers are rendered in decimal
func (s String) String() string {
	if s.isInt {
		return strconv.FormatInt(int64(s.integer), 10)
	}
	return s.text
}

// StringValue is the only value type supported in a snapshot
type StringValue struct {
	Data String
}

// AuxField is an auxiliary metadata record such as redis-ver
type AuxField struct {
	Key   String
	Value String
}

// ResizeHint carries the hash table sizes recorded for a database
type ResizeHint struct {
	HashTableSize       uint32
	ExpireHashTableSize uint32
}

// Entry is one key-value record
type Entry struct {
	Key    String
	Value  StringValue
	Expiry *time.Time // absolute deadline, nil when the key never expires
}

// WireValue converts the stored value to the bulk string served to clients
func (e Entry) WireValue() protocol.Value {
	return protocol.NewBulkString(e.Value.Data.String())
}

// Database is one database section of a snapshot
type Database struct {
	Number  uint32
	Resize  *ResizeHint
	Entries []Entry
}

// Snapshot is a fully decoded RDB file. It is never modified after decoding
// and may be shared between goroutines.
type Snapshot struct {
	Version   uint32
	Aux       []AuxField
	Databases []Database
}

// Get returns the entry stored under key. When several databases hold the
// key the last one in file order wins, matching how a store is seeded.
func (s *Snapshot) Get(key string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	for i := len(s.Databases) - 1; i >= 0; i-- {
		entries := s.Databases[i].Entries
		for j := len(entries) - 1; j >= 0; j-- {
			if entries[j].Key.String() == key {
				return entries[j], true
			}
		}
	}
	return Entry{}, false
}

// Keys returns every key of every database in file order
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, s.Len())
	for _, db := range s.Databases {
		for _, entry := range db.Entries {
			keys = append(keys, entry.Key.String())
		}
	}
	return keys
}

// Len returns the number of entries across all databases
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, db := range s.Databases {
		n += len(db.Entries)
	}
	return n
}

// AuxValue returns the value of the auxiliary field named key
func (s *Snapshot) AuxValue(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, aux := range s.Aux {
		if aux.Key.String() == key {
			return aux.Value.String(), true
		}
	}
	return "", false
}
