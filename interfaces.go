package redisrdb

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector interface for metrics collection
type MetricsCollector interface {
	// RecordSnapshotLoad records how long the snapshot took to load and how many keys it held
	RecordSnapshotLoad(duration time.Duration, keys int)

	// RecordCommandProcessed records a processed command with its duration
	RecordCommandProcessed(cmd string, duration time.Duration)

	// RecordConnection records a client connecting (open) or disconnecting
	RecordConnection(open bool)

	// RecordKeyCount records the number of keys every new connection starts with
	RecordKeyCount(count int64)

	// RecordError records an error event
	RecordError(errorType string)
}

// ServerStats holds counters maintained by the server
type ServerStats struct {
	mu sync.RWMutex

	// Lifecycle
	StartedAt        time.Time
	SnapshotLoadedAt time.Time

	// Snapshot
	SnapshotKeys    int64
	SnapshotVersion uint32

	// Connections
	ActiveConnections int64
	TotalConnections  int64

	// Command stats
	CommandsProcessed map[string]int64
	Errors            map[string]int64
}

// GetStartedAt returns when the server started (thread-safe)
func (s *ServerStats) GetStartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.StartedAt
}

// GetSnapshotKeys returns the number of keys loaded from the snapshot (thread-safe)
func (s *ServerStats) GetSnapshotKeys() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SnapshotKeys
}

// GetActiveConnections returns the number of open client connections (thread-safe)
func (s *ServerStats) GetActiveConnections() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ActiveConnections
}

// GetCommandCount returns the count for a specific command (thread-safe)
func (s *ServerStats) GetCommandCount(cmd string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CommandsProcessed[cmd]
}

// GetErrorCount returns the count for a specific error kind (thread-safe)
func (s *ServerStats) GetErrorCount(kind string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Errors[kind]
}

// hclogLogger is the default Logger, backed by go-hclog
type hclogLogger struct {
	logger hclog.Logger
}

// NewHCLogger adapts an hclog.Logger to Logger
func NewHCLogger(logger hclog.Logger) Logger {
	return &hclogLogger{logger: logger}
}

func defaultLogger() Logger {
	return NewHCLogger(hclog.New(&hclog.LoggerOptions{
		Name:  "redis-rdb-server",
		Level: hclog.Info,
	}))
}

func (l *hclogLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, flattenFields(fields)...)
}

func (l *hclogLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, flattenFields(fields)...)
}

func (l *hclogLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, flattenFields(fields)...)
}

func flattenFields(fields []Field) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for _, field := range fields {
		args = append(args, field.Key, field.Value)
	}
	return args
}
