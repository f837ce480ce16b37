package rdb

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// LoadStats tracks progress while a snapshot is loaded and logs it in
// batches so large files do not produce one line per key.
type LoadStats struct {
	StartTime     time.Time
	ProcessedKeys int64
	ExpiringKeys  int64
	DatabaseStats map[uint32]*DatabaseStats

	// BatchSize is the number of keys between progress lines
	BatchSize int64

	// LogInterval forces a progress line when this much time has passed
	LogInterval time.Duration

	lastLog     time.Time
	lastLogKeys int64
}

// DatabaseStats holds per-database counters
type DatabaseStats struct {
	Keys         int64
	ExpiringKeys int64
}

// NewLoadStats creates load statistics with default batching
func NewLoadStats() *LoadStats {
	now := time.Now()
	return &LoadStats{
		StartTime:     now,
		DatabaseStats: make(map[uint32]*DatabaseStats),
		BatchSize:     10000,
		LogInterval:   5 * time.Second,
		lastLog:       now,
	}
}

// RecordKey counts one key and logs progress when a batch completes
func (s *LoadStats) RecordKey(db uint32, expiring bool, logger Logger) {
	s.ProcessedKeys++

	dbStats, ok := s.DatabaseStats[db]
	if !ok {
		dbStats = &DatabaseStats{}
		s.DatabaseStats[db] = dbStats
	}
	dbStats.Keys++
	if expiring {
		dbStats.ExpiringKeys++
		s.ExpiringKeys++
	}

	if logger == nil {
		return
	}

	now := time.Now()
	if s.ProcessedKeys-s.lastLogKeys >= s.BatchSize || now.Sub(s.lastLog) >= s.LogInterval {
		logger.Info("Snapshot load progress",
			"keys", s.ProcessedKeys,
			"databases", s.databaseSummary(),
			"elapsed", now.Sub(s.StartTime).Round(time.Millisecond))
		s.lastLog = now
		s.lastLogKeys = s.ProcessedKeys
	}
}

// LogFinal logs the totals once loading is complete
func (s *LoadStats) LogFinal(logger Logger) {
	if logger == nil {
		return
	}
	logger.Info("Snapshot load completed",
		"keys", s.ProcessedKeys,
		"expiring", s.ExpiringKeys,
		"databases", s.databaseSummary(),
		"duration", time.Since(s.StartTime).Round(time.Millisecond))
}

// databaseSummary renders "db0:3,db1:1" in database order
func (s *LoadStats) databaseSummary() string {
	numbers := lo.Keys(s.DatabaseStats)
	slices.Sort(numbers)

	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("db%d:%d", n, s.DatabaseStats[n].Keys)
	}
	return strings.Join(parts, ",")
}
