package redisrdb

import (
	"fmt"
	"strings"
	"time"
)

// Isolation selects how connections share data
type Isolation int

const (
	// IsolationConnection gives every connection a private copy of the snapshot (default)
	IsolationConnection Isolation = iota

	// IsolationShared makes all connections read and write one store
	IsolationShared
)

// String returns the isolation name
func (i Isolation) String() string {
	switch i {
	case IsolationConnection:
		return "connection"
	case IsolationShared:
		return "shared"
	default:
		return fmt.Sprintf("isolation(%d)", int(i))
	}
}

// ParseIsolation parses "connection" or "shared"
func ParseIsolation(s string) (Isolation, error) {
	switch strings.ToLower(s) {
	case "", "connection":
		return IsolationConnection, nil
	case "shared":
		return IsolationShared, nil
	default:
		return 0, fmt.Errorf("unknown isolation %q: %w", s, ErrInvalidConfig)
	}
}

// config holds the configuration for a Server
type config struct {
	// Listener
	addr        string
	readTimeout time.Duration

	// Snapshot location
	dir        string
	dbFilename string

	// Data sharing
	isolation  Isolation
	shardCount int

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:       "127.0.0.1:6379",
		isolation:  IsolationConnection,
		shardCount: 16,
		logger:     defaultLogger(),
	}
}

// Option represents a configuration option for a Server
type Option func(*config) error

// WithAddr sets the listen address
//
// Example:
//
//	WithAddr(":6379")
//	WithAddr("127.0.0.1:0") // pick a free port
func WithAddr(addr string) Option {
	return func(c *config) error {
		if addr == "" {
			return ErrInvalidConfig
		}
		c.addr = addr
		return nil
	}
}

// WithDir sets the directory holding the snapshot file
func WithDir(dir string) Option {
	return func(c *config) error {
		c.dir = dir
		return nil
	}
}

// WithDBFilename sets the snapshot file name inside the directory
//
// Example:
//
//	WithDir("/var/lib/redis"), WithDBFilename("dump.rdb")
func WithDBFilename(name string) Option {
	return func(c *config) error {
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("dbfilename %q must not contain a path separator: %w", name, ErrInvalidConfig)
		}
		c.dbFilename = name
		return nil
	}
}

// WithLogger sets a custom logger for the server
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}

// WithIsolation selects per-connection or shared data
//
// Example:
//
//	WithIsolation(IsolationShared) // writes are visible to every client
func WithIsolation(isolation Isolation) Option {
	return func(c *config) error {
		if isolation != IsolationConnection && isolation != IsolationShared {
			return ErrInvalidConfig
		}
		c.isolation = isolation
		return nil
	}
}

// WithReadTimeout closes connections idle for longer than timeout.
// Zero disables the timeout, which is the default.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return ErrInvalidConfig
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithShardCount sets the number of shards of the shared store.
// It only applies to IsolationShared and is rounded up to a power of two.
func WithShardCount(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.shardCount = n
		return nil
	}
}
