package rdb

import (
	"fmt"
	"io"
	"os"
)

// Decode reads a complete snapshot from r
func Decode(r io.Reader) (*Snapshot, error) {
	return DecodeWithLogger(r, nil)
}

// DecodeWithLogger is Decode with parser debug output and load progress
// sent to logger. A nil logger disables logging.
func DecodeWithLogger(r io.Reader, logger Logger) (*Snapshot, error) {
	b := &snapshotBuilder{
		snapshot: &Snapshot{},
		stats:    NewLoadStats(),
		logger:   logger,
	}

	parser := NewParser(r, b)
	if logger != nil {
		parser.SetLogger(logger)
	}
	if err := parser.Parse(); err != nil {
		return nil, err
	}
	b.snapshot.Version = parser.Version()
	return b.snapshot, nil
}

// Load opens and decodes the snapshot file at path. A missing file is
// reported with an error matching os.ErrNotExist.
func Load(path string, logger Logger) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snapshot, err := DecodeWithLogger(f, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return snapshot, nil
}

// snapshotBuilder collects parser callbacks into a Snapshot
type snapshotBuilder struct {
	snapshot *Snapshot
	stats    *LoadStats
	logger   Logger
}

func (b *snapshotBuilder) OnAux(field AuxField) error {
	b.snapshot.Aux = append(b.snapshot.Aux, field)
	return nil
}

func (b *snapshotBuilder) OnDatabase(number uint32) error {
	b.snapshot.Databases = append(b.snapshot.Databases, Database{Number: number})
	return nil
}

func (b *snapshotBuilder) OnResize(hint ResizeHint) error {
	db := b.current()
	if db == nil {
		return fmt.Errorf("resize hint outside of a database section")
	}
	db.Resize = &hint
	if hint.HashTableSize > 0 {
		// the hint is advisory; cap it so a corrupt file cannot force a huge allocation
		db.Entries = make([]Entry, 0, min(hint.HashTableSize, 1<<16))
	}
	return nil
}

func (b *snapshotBuilder) OnKey(entry Entry) error {
	db := b.current()
	if db == nil {
		return fmt.Errorf("key %q outside of a database section", entry.Key.String())
	}
	db.Entries = append(db.Entries, entry)
	b.stats.RecordKey(db.Number, entry.Expiry != nil, b.logger)
	return nil
}

func (b *snapshotBuilder) OnEnd() error {
	b.stats.LogFinal(b.logger)
	return nil
}

func (b *snapshotBuilder) current() *Database {
	if len(b.snapshot.Databases) == 0 {
		return nil
	}
	return &b.snapshot.Databases[len(b.snapshot.Databases)-1]
}
