package storage

import (
	"time"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
)

// ExpirationKind tells how an Expiration is evaluated
type ExpirationKind int

const (
	// ExpireNever marks a value without expiration
	ExpireNever ExpirationKind = iota
	// ExpireAt marks an absolute wall-clock deadline
	ExpireAt
	// ExpireAfter marks a duration measured from insertion
	ExpireAfter
)

// String returns the expiration kind name
func (k ExpirationKind) String() string {
	switch k {
	case ExpireNever:
		return "none"
	case ExpireAt:
		return "deadline"
	case ExpireAfter:
		return "relative"
	default:
		return "unknown"
	}
}

// Expiration decides when a stored value stops being visible
type Expiration struct {
	Kind     ExpirationKind
	Deadline time.Time     // ExpireAt
	TTL      time.Duration // ExpireAfter
	Inserted time.Time     // ExpireAfter, carries a monotonic reading when taken from time.Now
}

// NoExpiration returns an expiration that never fires
func NoExpiration() Expiration {
	return Expiration{Kind: ExpireNever}
}

// Deadline returns an expiration that fires at t
func Deadline(t time.Time) Expiration {
	return Expiration{Kind: ExpireAt, Deadline: t}
}

// Relative returns an expiration that fires once ttl has elapsed since inserted
func Relative(ttl time.Duration, inserted time.Time) Expiration {
	return Expiration{Kind: ExpireAfter, TTL: ttl, Inserted: inserted}
}

// Expired reports whether the expiration has fired at now. A deadline fires
// when now reaches it; a relative expiration fires once strictly more than
// its TTL has elapsed, and a non-positive TTL fires immediately.
func (e Expiration) Expired(now time.Time) bool {
	switch e.Kind {
	case ExpireAt:
		return !now.Before(e.Deadline)
	case ExpireAfter:
		return e.TTL <= 0 || now.Sub(e.Inserted) > e.TTL
	default:
		return false
	}
}

// Value represents a stored value with its expiration. Values are replaced,
// never modified in place.
type Value struct {
	Data       protocol.Value
	Expiration Expiration
}

// IsExpired returns true if the value has expired at now
func (v Value) IsExpired(now time.Time) bool {
	return v.Expiration.Expired(now)
}
