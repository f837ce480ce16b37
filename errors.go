package redisrdb

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotStarted indicates the server has not been started
	ErrNotStarted = errors.New("server is not started")

	// ErrClosed indicates the server has been closed
	ErrClosed = errors.New("server is closed")
)

// SnapshotError reports a snapshot file that exists but could not be loaded
type SnapshotError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot error in %s: %v", e.Path, e.Err)
}

// Unwrap returns the wrapped error
func (e *SnapshotError) Unwrap() error {
	return e.Err
}
