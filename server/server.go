package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/raniellyferreira/redis-rdb-server/protocol"
	"github.com/raniellyferreira/redis-rdb-server/rdb"
	"github.com/raniellyferreira/redis-rdb-server/storage"
)

// Logger is the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Metrics receives per-connection and per-command observations
type Metrics interface {
	RecordConnection(open bool)
	RecordCommandProcessed(cmd string, duration time.Duration)
	RecordError(kind string)
}

// StoreFactory returns the store a new connection operates on
type StoreFactory func() storage.Storage

// PerConnection gives every connection its own store seeded from snapshot.
// Writes made on one connection are never visible on another.
func PerConnection(snapshot *rdb.Snapshot, opts ...storage.Option) StoreFactory {
	return func() storage.Storage {
		store := storage.NewMemory(opts...)
		store.Seed(snapshot)
		return store
	}
}

// Shared makes every connection operate on the same store
func Shared(store storage.Storage) StoreFactory {
	return func() storage.Storage { return store }
}

// Server accepts RESP connections and executes commands against a store
type Server struct {
	newStore StoreFactory
	config   ConfigProvider

	// Server configuration
	addr        string
	readTimeout time.Duration
	logger      Logger
	metrics     Metrics

	// Connection management
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	connCount    atomic.Int64
	commandCount atomic.Int64
	errorCount   atomic.Int64
}

// Client represents a connected client
type Client struct {
	id     ulid.ULID
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	store  storage.Storage
	server *Server

	// Control
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewServer creates a server listening on addr. newStore is called once per
// accepted connection; config answers CONFIG GET.
func NewServer(addr string, newStore StoreFactory, config ConfigProvider) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	if config == nil {
		config = StaticConfig{}
	}

	return &Server{
		newStore: newStore,
		config:   config,
		addr:     addr,
		logger:   nopLogger{},
		metrics:  nopMetrics{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetLogger sets the logger. Must be called before Start.
func (s *Server) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetMetrics sets the metrics sink. Must be called before Start.
func (s *Server) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// SetReadTimeout closes connections that stay idle longer than d.
// Zero, the default, disables the timeout.
func (s *Server) SetReadTimeout(d time.Duration) {
	s.readTimeout = d
}

// Start binds the listener and begins accepting connections in the background
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("Server listening", "addr", s.listener.Addr().String())

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop closes the listener and every client connection, then waits for
// connection goroutines to finish or ctx to be done.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	clientCount := 0
	s.clients.Range(func(key, value interface{}) bool {
		clientCount++
		return true
	})

	return map[string]interface{}{
		"connected_clients": clientCount,
		"total_commands":    s.commandCount.Load(),
		"total_errors":      s.errorCount.Load(),
		"total_connections": s.connCount.Load(),
	}
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return // Server is shutting down
			}
			s.logger.Error("Accept failed", "error", err)
			continue
		}

		s.handleNewClient(conn)
	}
}

// handleNewClient registers conn and starts its command loop
func (s *Server) handleNewClient(conn net.Conn) {
	s.connCount.Add(1)
	s.metrics.RecordConnection(true)

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		id:     ulid.Make(),
		conn:   conn,
		reader: protocol.NewReader(conn),
		writer: protocol.NewWriter(conn),
		server: s,
		ctx:    ctx,
		cancel: cancel,
	}

	s.clients.Store(conn, client)
	s.logger.Debug("Client connected", "client", client.id.String(), "remote", conn.RemoteAddr().String())

	s.wg.Add(1)
	go client.handle()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type nopMetrics struct{}

func (nopMetrics) RecordConnection(bool)                        {}
func (nopMetrics) RecordCommandProcessed(string, time.Duration) {}
func (nopMetrics) RecordError(string)                           {}
