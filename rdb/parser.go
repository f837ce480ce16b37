package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"time"
	"unicode/utf8"
)

// RDB format constants
const (
	Magic = "REDIS"

	OpcodeEOF      = 0xFF
	OpcodeDB       = 0xFE
	OpcodeExpiry   = 0xFD
	OpcodeExpiryMs = 0xFC
	OpcodeResizeDB = 0xFB
	OpcodeAux      = 0xFA

	TypeString = 0

	// special length selectors
	encodingInt8  = 0
	encodingInt16 = 1
	encodingInt32 = 2
	encodingLZF   = 3

	// strings longer than this are read incrementally instead of preallocated
	maxPreallocSize = 64 * 1024
)

// Logger is the logging interface used by the parser
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Handler receives records while a snapshot is parsed, in file order
type Handler interface {
	// OnAux is called for each auxiliary field
	OnAux(field AuxField) error

	// OnDatabase is called when a database section starts
	OnDatabase(number uint32) error

	// OnResize is called when a database section carries a resize hint
	OnResize(hint ResizeHint) error

	// OnKey is called for each key-value record
	OnKey(entry Entry) error

	// OnEnd is called once the EOF opcode has been read
	OnEnd() error
}

// Parser decodes an RDB stream strictly forward, one token at a time
type Parser struct {
	r       *countingReader
	handler Handler
	logger  Logger
	version uint32
}

// NewParser creates a new RDB parser
func NewParser(r io.Reader, handler Handler) *Parser {
	return &Parser{
		r:       &countingReader{br: bufio.NewReader(r)},
		handler: handler,
	}
}

// SetLogger sets the logger for the parser
func (p *Parser) SetLogger(logger Logger) {
	p.logger = logger
}

func (p *Parser) logDebug(msg string, fields ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, fields...)
	}
}

// Version returns the format version read from the header
func (p *Parser) Version() uint32 {
	return p.version
}

// Offset returns the number of bytes consumed so far
func (p *Parser) Offset() int64 {
	return p.r.n
}

// Parse reads the whole snapshot. Format problems are returned as
// *DecodeError; errors returned by the handler are passed through unchanged.
func (p *Parser) Parse() error {
	version, err := p.readHeader()
	if err != nil {
		return err
	}
	p.version = version
	p.logDebug("RDB header", "version", version)

	for {
		op, err := p.peek("aux")
		if err != nil {
			return err
		}
		if op != OpcodeAux {
			break
		}
		if err := p.readAux(); err != nil {
			return err
		}
	}

	for {
		start := p.r.n
		op, err := p.r.ReadByte()
		if err != nil {
			return p.fail(start, "database", err)
		}

		switch op {
		case OpcodeEOF:
			// the trailing checksum is not verified
			return p.handler.OnEnd()
		case OpcodeDB:
			if err := p.readDatabase(); err != nil {
				return err
			}
		default:
			return p.fail(start, "database", ErrUnexpectedOpcode)
		}
	}
}

func (p *Parser) readHeader() (uint32, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(p.r, magic); err != nil {
		return 0, p.fail(0, "header", err)
	}
	if string(magic) != Magic {
		return 0, p.fail(0, "header", ErrBadMagic)
	}

	raw := make([]byte, 4)
	if _, err := io.ReadFull(p.r, raw); err != nil {
		return 0, p.fail(int64(len(Magic)), "version", err)
	}
	version, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, p.fail(int64(len(Magic)), "version", ErrBadVersion)
	}
	return uint32(version), nil
}

func (p *Parser) readAux() error {
	if _, err := p.r.ReadByte(); err != nil {
		return p.fail(p.r.n, "aux", err)
	}
	key, err := p.readString("aux key")
	if err != nil {
		return err
	}
	value, err := p.readString("aux value")
	if err != nil {
		return err
	}
	p.logDebug("RDB aux field", "key", key.String(), "value", value.String())
	return p.handler.OnAux(AuxField{Key: key, Value: value})
}

// readDatabase reads one section after its 0xFE selector
func (p *Parser) readDatabase() error {
	number, err := p.readPlainLength("database")
	if err != nil {
		return err
	}
	if err := p.handler.OnDatabase(number); err != nil {
		return err
	}

	op, err := p.peek("database")
	if err != nil {
		return err
	}
	if op == OpcodeResizeDB {
		p.r.ReadByte()
		size, err := p.readPlainLength("resize")
		if err != nil {
			return err
		}
		expires, err := p.readPlainLength("resize")
		if err != nil {
			return err
		}
		hint := ResizeHint{HashTableSize: size, ExpireHashTableSize: expires}
		if err := p.handler.OnResize(hint); err != nil {
			return err
		}
	}

	for {
		op, err := p.peek("key")
		if err != nil {
			return err
		}
		if op == OpcodeDB || op == OpcodeEOF {
			return nil
		}
		entry, err := p.readEntry()
		if err != nil {
			return err
		}
		if err := p.handler.OnKey(entry); err != nil {
			return err
		}
	}
}

func (p *Parser) readEntry() (Entry, error) {
	var entry Entry

	start := p.r.n
	op, err := p.r.ReadByte()
	if err != nil {
		return entry, p.fail(start, "key", err)
	}

	switch op {
	case OpcodeExpiry:
		var buf [4]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return entry, p.fail(start, "expiry", err)
		}
		t := time.Unix(int64(binary.BigEndian.Uint32(buf[:])), 0)
		entry.Expiry = &t
	case OpcodeExpiryMs:
		var buf [8]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return entry, p.fail(start, "expiry", err)
		}
		t := time.UnixMilli(int64(binary.BigEndian.Uint64(buf[:])))
		entry.Expiry = &t
	}

	valueType := op
	if entry.Expiry != nil {
		start = p.r.n
		if valueType, err = p.r.ReadByte(); err != nil {
			return entry, p.fail(start, "value type", err)
		}
	}
	if valueType != TypeString {
		return entry, p.fail(start, "value type", ErrUnsupportedValueType)
	}

	if entry.Key, err = p.readString("key"); err != nil {
		return entry, err
	}
	data, err := p.readString("value")
	if err != nil {
		return entry, err
	}
	entry.Value = StringValue{Data: data}
	return entry, nil
}

// length is a decoded length-encoding token
type length struct {
	n        uint32
	special  bool
	selector byte
}

func (p *Parser) readLength() (length, error) {
	b, err := p.r.ReadByte()
	if err != nil {
		return length{}, err
	}

	switch b >> 6 {
	case 0:
		// 6-bit length
		return length{n: uint32(b & 0x3F)}, nil

	case 1:
		// 14-bit length
		b2, err := p.r.ReadByte()
		if err != nil {
			return length{}, err
		}
		return length{n: uint32(b&0x3F)<<8 | uint32(b2)}, nil

	case 2:
		// 32-bit big-endian length
		var buf [4]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return length{}, err
		}
		return length{n: binary.BigEndian.Uint32(buf[:])}, nil

	default:
		return length{special: true, selector: b & 0x3F}, nil
	}
}

func (p *Parser) readPlainLength(op string) (uint32, error) {
	start := p.r.n
	l, err := p.readLength()
	if err != nil {
		return 0, p.fail(start, op, err)
	}
	if l.special {
		return 0, p.fail(start, op, ErrBadLengthEncoding)
	}
	return l.n, nil
}

func (p *Parser) readString(op string) (String, error) {
	start := p.r.n
	l, err := p.readLength()
	if err != nil {
		return String{}, p.fail(start, op, err)
	}

	if l.special {
		n, err := p.readSpecialInt(l.selector)
		if err != nil {
			return String{}, p.fail(start, op, err)
		}
		return Integer(n), nil
	}

	data, err := p.readBytes(l.n)
	if err != nil {
		return String{}, p.fail(start, op, err)
	}
	if !utf8.Valid(data) {
		return String{}, p.fail(start, op, ErrInvalidUTF8)
	}
	return Text(string(data)), nil
}

// readSpecialInt reads the integer that follows a special selector
func (p *Parser) readSpecialInt(selector byte) (int32, error) {
	switch selector {
	case encodingInt8:
		b, err := p.r.ReadByte()
		if err != nil {
			return 0, err
		}
		return int32(int8(b)), nil

	case encodingInt16:
		var buf [2]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return 0, err
		}
		return int32(int16(binary.BigEndian.Uint16(buf[:]))), nil

	case encodingInt32:
		var buf [4]byte
		if _, err := io.ReadFull(p.r, buf[:]); err != nil {
			return 0, err
		}
		return int32(binary.BigEndian.Uint32(buf[:])), nil

	case encodingLZF:
		return 0, ErrUnsupportedCompression

	default:
		p.logDebug("Unknown special string encoding", "encoding", selector)
		return 0, ErrUnsupportedSpecialEncoding
	}
}

func (p *Parser) readBytes(n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	if n <= maxPreallocSize {
		data := make([]byte, n)
		if _, err := io.ReadFull(p.r, data); err != nil {
			return nil, err
		}
		return data, nil
	}

	// a corrupt length must not allocate gigabytes up front
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, p.r, int64(n))
	if err != nil {
		if err == io.EOF && copied < int64(n) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Parser) peek(op string) (byte, error) {
	b, err := p.r.br.Peek(1)
	if err != nil {
		return 0, p.fail(p.r.n, op, err)
	}
	return b[0], nil
}

// fail wraps err in a *DecodeError. A plain EOF is always premature here
// because the stream must end with the EOF opcode.
func (p *Parser) fail(offset int64, op string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &DecodeError{Offset: offset, Op: op, Err: err}
}

// countingReader tracks how many bytes have been consumed from br
type countingReader struct {
	br *bufio.Reader
	n  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}
