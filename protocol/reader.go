package protocol

import (
	"bytes"
	"errors"
	"io"
)

const readChunkSize = 4096

// Reader is a streaming RESP reader. It accumulates bytes from the
// underlying reader until a complete frame can be decoded, so a value split
// across several socket reads is never dropped.
type Reader struct {
	rd      io.Reader
	buf     []byte // undecoded input
	scratch []byte // reusable read buffer
	err     error  // deferred read error
	want    int    // buffered length required before decoding again
}

// NewReader creates a new streaming RESP reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		rd:      r,
		buf:     make([]byte, 0, readChunkSize),
		scratch: make([]byte, readChunkSize),
	}
}

// ReadNext reads the next RESP value from the stream.
//
// A malformed frame yields a *DecodeError and the buffered input is
// discarded, so the next call starts fresh with whatever arrives afterwards.
// Read errors from the underlying reader are returned as-is once no complete
// frame is buffered; EOF in the middle of a frame is io.ErrUnexpectedEOF.
func (r *Reader) ReadNext() (Value, error) {
	for {
		r.skipBlankLines()

		if len(r.buf) > 0 && len(r.buf) >= r.want {
			rest, v, err := Decode(r.buf)
			if err == nil {
				r.want = 0
				r.consume(rest)
				return v, nil
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) || !decodeErr.Incomplete {
				r.want = 0
				r.buf = r.buf[:0]
				return nil, err
			}
			// a partial frame is decoded again only once it can be complete
			r.want = len(r.buf) + max(decodeErr.Need, 1)
		}

		if r.err != nil {
			err := r.err
			if err == io.EOF && len(r.buf) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		n, err := r.rd.Read(r.scratch)
		if n > 0 {
			r.buf = append(r.buf, r.scratch[:n]...)
		}
		if err != nil {
			r.err = err
		}
	}
}

// Buffered returns the number of bytes read from the stream but not yet decoded
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// Reset discards buffered input and any deferred error and reads from rd
func (r *Reader) Reset(rd io.Reader) {
	r.rd = rd
	r.buf = r.buf[:0]
	r.err = nil
	r.want = 0
}

// skipBlankLines drops bare CRLF pairs between frames
func (r *Reader) skipBlankLines() {
	skip := 0
	for bytes.HasPrefix(r.buf[skip:], crlfBytes) {
		skip += len(crlfBytes)
	}
	if skip > 0 {
		r.consume(r.buf[skip:])
	}
}

// consume keeps only rest, which must be a suffix of r.buf
func (r *Reader) consume(rest []byte) {
	n := copy(r.buf, rest)
	r.buf = r.buf[:n]
}
