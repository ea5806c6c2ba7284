// Package persist implements the typed binary stream the engine uses to
// save and restore Security-Object and Server-Object instances, and
// optional NTP state, across restarts (spec §4.10, §6). Its reader/writer
// split with typed helpers is grounded on the teacher stack's EDS/INI
// parser (pkg/od/parser.go), generalized from a text (INI) format to a
// compact binary stream with a 4-byte magic + version + feature-bit
// header, because persistence here is a byte stream the host owns, not a
// text config file.
package persist

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrBadMagic is returned when a stream's header does not match the
// expected 4-byte magic, meaning it is not one of this package's formats.
var ErrBadMagic = errors.New("persist: bad magic")

// ErrUnsupportedVersion is returned when a stream's version byte is
// higher than this package knows how to decode.
var ErrUnsupportedVersion = errors.New("persist: unsupported version")

// Writer serializes the typed fields of a persisted state in order.
type Writer struct {
	w   *bufio.Writer
	err error
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: bufio.NewWriter(w)} }

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) Magic(m [4]byte) { w.bytes(m[:]) }

func (w *Writer) Uint8(v uint8) {
	if w.err != nil {
		return
	}
	if err := w.w.WriteByte(v); err != nil {
		w.fail(err)
	}
}

func (w *Writer) Uint16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.bytes(buf[:])
}

func (w *Writer) Uint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.bytes(buf[:])
}

func (w *Writer) Uint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.bytes(buf[:])
}

// String writes a length-prefixed (uint16) UTF-8 string.
func (w *Writer) String(s string) {
	w.Uint16(uint16(len(s)))
	w.bytes([]byte(s))
}

// Bytes writes a length-prefixed (uint32) byte slice.
func (w *Writer) Bytes(b []byte) {
	w.Uint32(uint32(len(b)))
	w.bytes(b)
}

func (w *Writer) bytes(b []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.fail(err)
	}
}

// Flush flushes the underlying buffer and returns the first error
// encountered by any prior write, if any.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// Reader deserializes a stream written by Writer, tracking the first
// error across all reads so call sites don't need to check err after
// every field (mirroring the teacher's scanner-style parser).
type Reader struct {
	r   *bufio.Reader
	err error
}

func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReader(r)} }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Err returns the first error encountered, or nil.
func (r *Reader) Err() error { return r.err }

// Magic reads and validates a 4-byte magic against want.
func (r *Reader) Magic(want [4]byte) {
	var got [4]byte
	r.read(got[:])
	if r.err != nil {
		return
	}
	if got != want {
		r.fail(fmt.Errorf("%w: got %q want %q", ErrBadMagic, got, want))
	}
}

func (r *Reader) Uint8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(err)
		return 0
	}
	return b
}

func (r *Reader) Uint16() uint16 {
	var buf [2]byte
	r.read(buf[:])
	return binary.BigEndian.Uint16(buf[:])
}

func (r *Reader) Uint32() uint32 {
	var buf [4]byte
	r.read(buf[:])
	return binary.BigEndian.Uint32(buf[:])
}

func (r *Reader) Uint64() uint64 {
	var buf [8]byte
	r.read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}

func (r *Reader) String() string {
	n := r.Uint16()
	if r.err != nil {
		return ""
	}
	buf := make([]byte, n)
	r.read(buf)
	return string(buf)
}

func (r *Reader) Bytes() []byte {
	n := r.Uint32()
	if r.err != nil || n == 0 {
		return nil
	}
	buf := make([]byte, n)
	r.read(buf)
	return buf
}

func (r *Reader) read(buf []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(err)
	}
}
