package rdb

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"testing"
)

// countingHandler is a minimal handler for benchmarking
type countingHandler struct {
	keyCount int
}

func (h *countingHandler) OnAux(AuxField) error { return nil }
func (h *countingHandler) OnDatabase(uint32) error { return nil }
func (h *countingHandler) OnResize(ResizeHint) error { return nil }
func (h *countingHandler) OnKey(Entry) error { h.keyCount++; return nil }
func (h *countingHandler) OnEnd() error { return nil }

// generateSnapshot creates a synthetic snapshot for benchmarking
func generateSnapshot(keyCount int, valueSize int) []byte {
	var buf bytes.Buffer

	buf.WriteString("REDIS0011")

	buf.WriteByte(OpcodeAux)
	writeString(&buf, "redis-ver")
	writeString(&buf, "7.2.0")

	buf.WriteByte(OpcodeDB)
	buf.WriteByte(0)

	buf.WriteByte(OpcodeResizeDB)
	writeLength(&buf, keyCount)
	writeLength(&buf, 0)

	value := string(bytes.Repeat([]byte("x"), valueSize))
	for i := 0; i < keyCount; i++ {
		if i%4 == 0 {
			buf.WriteByte(OpcodeExpiryMs)
			binary.Write(&buf, binary.BigEndian, uint64(1700000000000+i))
		}
		buf.WriteByte(TypeString)
		writeString(&buf, "key_"+strconv.Itoa(i))
		writeString(&buf, value)
	}

	buf.WriteByte(OpcodeEOF)
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0})

	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	writeLength(buf, len(s))
	buf.WriteString(s)
}

func writeLength(buf *bytes.Buffer, length int) {
	switch {
	case length < 64:
		buf.WriteByte(byte(length))
	case length < 16384:
		buf.WriteByte(byte((length >> 8) | 0x40))
		buf.WriteByte(byte(length & 0xFF))
	default:
		buf.WriteByte(0x80)
		binary.Write(buf, binary.BigEndian, uint32(length))
	}
}

func TestGeneratedSnapshotRoundTrip(t *testing.T) {
	data := generateSnapshot(100, 100000)

	snapshot, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if snapshot.Version != 11 {
		t.Errorf("Version = %d, want 11", snapshot.Version)
	}
	if snapshot.Len() != 100 {
		t.Errorf("Len() = %d, want 100", snapshot.Len())
	}
	entry, ok := snapshot.Get("key_4")
	if !ok || entry.Expiry == nil || len(entry.Value.Data.String()) != 100000 {
		t.Errorf("Get(key_4) = %+v, %v", entry.Expiry, ok)
	}
}

// BenchmarkParse benchmarks streaming parsing with synthetic data
func BenchmarkParse(b *testing.B) {
	scenarios := []struct {
		name      string
		keyCount  int
		valueSize int
	}{
		{"Small_10keys_16B", 10, 16},
		{"Medium_100keys_1KB", 100, 1024},
		{"Large_1000keys_1KB", 1000, 1024},
		{"VeryLarge_10000keys_16B", 10000, 16},
	}

	for _, sc := range scenarios {
		b.Run(sc.name, func(b *testing.B) {
			data := generateSnapshot(sc.keyCount, sc.valueSize)

			b.ReportAllocs()
			b.SetBytes(int64(len(data)))

			for i := 0; i < b.N; i++ {
				handler := &countingHandler{}
				if err := NewParser(bytes.NewReader(data), handler).Parse(); err != nil {
					b.Fatal(err)
				}
				if handler.keyCount != sc.keyCount {
					b.Fatalf("expected %d keys, got %d", sc.keyCount, handler.keyCount)
				}
			}
		})
	}
}

// BenchmarkDecode benchmarks building a full Snapshot
func BenchmarkDecode(b *testing.B) {
	data := generateSnapshot(1000, 64)

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		if _, err := Decode(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
