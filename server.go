package redisrdb

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/raniellyferreira/redis-rdb-server/rdb"
	"github.com/raniellyferreira/redis-rdb-server/server"
	"github.com/raniellyferreira/redis-rdb-server/storage"
)

// Server is a RESP key-value server bootstrapped from an RDB snapshot
type Server struct {
	// Configuration
	config *config

	// Components
	snapshot    *rdb.Snapshot
	snapshotErr error
	shared      storage.Storage
	server      *server.Server

	// State
	mu      sync.RWMutex
	started bool
	closed  bool

	// Statistics (exported for monitoring)
	Stats ServerStats
}

// New creates a new Server with the given options
//
// The server is created but not started. Use Start() to load the snapshot
// and begin accepting connections.
//
// Example:
//
//	srv, err := redisrdb.New(
//		redisrdb.WithAddr(":6379"),
//		redisrdb.WithDir("/var/lib/redis"),
//		redisrdb.WithDBFilename("dump.rdb"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Server, error) {
	cfg := defaultConfig()

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &Server{
		config: cfg,
		Stats: ServerStats{
			CommandsProcessed: make(map[string]int64),
			Errors:            make(map[string]int64),
		},
	}, nil
}

// Start loads the snapshot, if one is configured, and starts listening.
//
// A missing or unreadable snapshot does not fail Start: the server logs the
// cause and serves an empty dataset. See SnapshotErr.
//
// Example:
//
//	if err := srv.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Close()
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.started {
		return nil // Already started
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.snapshot = s.loadSnapshot()

	var newStore server.StoreFactory
	switch s.config.isolation {
	case IsolationShared:
		store := storage.NewSharded(storage.WithShardCount(s.config.shardCount))
		store.Seed(s.snapshot)
		s.shared = store
		newStore = server.Shared(store)
	default:
		newStore = server.PerConnection(s.snapshot)
	}

	srv := server.NewServer(s.config.addr, newStore, server.StaticConfig{
		Dir:        s.config.dir,
		DBFilename: s.config.dbFilename,
	})
	srv.SetLogger(&loggerAdapter{logger: s.config.logger})
	srv.SetMetrics(&metricsAdapter{stats: &s.Stats, metrics: s.config.metrics})
	srv.SetReadTimeout(s.config.readTimeout)

	if err := srv.Start(); err != nil {
		s.config.logger.Error("Failed to start server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: s.config.addr})
		return err
	}

	s.server = srv
	s.started = true

	s.Stats.mu.Lock()
	s.Stats.StartedAt = time.Now()
	s.Stats.mu.Unlock()

	s.config.logger.Info("Server started",
		Field{Key: "addr", Value: srv.Addr()},
		Field{Key: "isolation", Value: s.config.isolation.String()},
		Field{Key: "keys", Value: s.snapshot.Len()})

	return nil
}

// loadSnapshot reads <dir>/<dbfilename>. Every failure yields a nil snapshot,
// which seeds an empty store.
func (s *Server) loadSnapshot() *rdb.Snapshot {
	cfg := s.config
	if cfg.dir == "" || cfg.dbFilename == "" {
		cfg.logger.Info("No snapshot configured, starting with an empty dataset")
		return nil
	}

	path := filepath.Join(cfg.dir, cfg.dbFilename)
	start := time.Now()

	snapshot, err := rdb.Load(path, &loggerAdapter{logger: cfg.logger})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.logger.Info("Snapshot file not found, starting with an empty dataset", Field{Key: "path", Value: path})
			return nil
		}
		s.snapshotErr = &SnapshotError{Path: path, Err: err}
		cfg.logger.Error("Failed to load snapshot, starting with an empty dataset",
			Field{Key: "path", Value: path},
			Field{Key: "error", Value: err})
		if cfg.metrics != nil {
			cfg.metrics.RecordError("snapshot")
		}
		return nil
	}

	keys := snapshot.Len()
	if cfg.metrics != nil {
		cfg.metrics.RecordSnapshotLoad(time.Since(start), keys)
		cfg.metrics.RecordKeyCount(int64(keys))
	}

	s.Stats.mu.Lock()
	s.Stats.SnapshotLoadedAt = time.Now()
	s.Stats.SnapshotKeys = int64(keys)
	s.Stats.SnapshotVersion = snapshot.Version
	s.Stats.mu.Unlock()

	cfg.logger.Info("Snapshot loaded",
		Field{Key: "path", Value: path},
		Field{Key: "version", Value: snapshot.Version},
		Field{Key: "databases", Value: len(snapshot.Databases)},
		Field{Key: "keys", Value: keys},
		Field{Key: "duration", Value: time.Since(start)})

	return snapshot
}

// Shutdown stops accepting connections and closes open ones, waiting for
// their goroutines until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if !s.started {
		return ErrNotStarted
	}

	s.closed = true
	return s.server.Stop(ctx)
}

// Close shuts the server down, waiting up to five seconds for connections
// to finish. Closing a server that was never started only marks it closed.
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.started {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Addr returns the listening address, or "" before Start
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.server == nil {
		return ""
	}
	return s.server.Addr()
}

// Snapshot returns the snapshot loaded at Start, nil when none was loaded
func (s *Server) Snapshot() *rdb.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SnapshotErr returns the *SnapshotError that made Start fall back to an
// empty dataset, or nil
func (s *Server) SnapshotErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotErr
}

// Storage returns the store shared by all connections under
// IsolationShared, or nil under per-connection isolation
func (s *Server) Storage() storage.Storage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared
}

// GetInfo returns detailed information about the server
//
// Example:
//
//	info := srv.GetInfo()
//	fmt.Printf("Snapshot keys: %v\n", info["snapshot"].(map[string]interface{})["keys"])
func (s *Server) GetInfo() map[string]interface{} {
	s.mu.RLock()
	srv := s.server
	snapshot := s.snapshot
	s.mu.RUnlock()

	info := map[string]interface{}{
		"isolation": s.config.isolation.String(),
		"config": map[string]interface{}{
			"dir":        s.config.dir,
			"dbfilename": s.config.dbFilename,
		},
		"version": VersionInfo(),
	}

	if srv != nil {
		info["addr"] = srv.Addr()
		info["server"] = srv.Stats()
	}

	snapshotInfo := map[string]interface{}{
		"loaded": snapshot != nil,
		"keys":   snapshot.Len(),
	}
	if snapshot != nil {
		snapshotInfo["version"] = snapshot.Version
		snapshotInfo["databases"] = len(snapshot.Databases)
		if redisVer, ok := snapshot.AuxValue("redis-ver"); ok {
			snapshotInfo["redis_ver"] = redisVer
		}
	}
	info["snapshot"] = snapshotInfo

	return info
}
