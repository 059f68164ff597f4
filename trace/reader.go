// Package trace reads and writes binary address traces: fixed-width unsigned
// integers stored back to back with no header or delimiter.
package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/cachesim/cache"
)

// AddressBytes is the size of one trace record.
const AddressBytes = cache.AddressWidth / 8

// Source produces addresses until it returns io.EOF.
type Source interface {
	Next() (uint64, error)
}

// ErrUnknownByteOrder is returned by ParseByteOrder.
var ErrUnknownByteOrder = errors.New("unknown byte order")

// ParseByteOrder accepts "native" (or empty), "little" and "big".
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native":
		return binary.NativeEndian, nil
	case "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}

	return nil, fmt.Errorf("%w %q", ErrUnknownByteOrder, name)
}

// ReadError is a failure of the underlying stream, as opposed to its end.
type ReadError struct {
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("trace read failed at byte %d: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Reader decodes a binary trace. It is a Source.
type Reader struct {
	r        *bufio.Reader
	order    binary.ByteOrder
	buf      [AddressBytes]byte
	offset   int64
	count    uint64
	trailing int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader, order binary.ByteOrder) *Reader {
	if order == nil {
		order = binary.NativeEndian
	}

	return &Reader{
		r:     bufio.NewReaderSize(r, 64*1024),
		order: order,
	}
}

// Next returns the next address. At the end of the stream it returns io.EOF.
// A final record shorter than AddressBytes also ends the stream; its length
// is reported by Trailing.
func (r *Reader) Next() (uint64, error) {
	n, err := io.ReadFull(r.r, r.buf[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.trailing = n
		r.offset += int64(n)
		return 0, io.EOF
	default:
		return 0, &ReadError{Offset: r.offset + int64(n), Err: err}
	}

	r.offset += AddressBytes
	r.count++

	return r.decode(), nil
}

func (r *Reader) decode() uint64 {
	if AddressBytes == 4 {
		return uint64(r.order.Uint32(r.buf[:]))
	}

	return r.order.Uint64(r.buf[:])
}

// Count returns the number of addresses read so far.
func (r *Reader) Count() uint64 {
	return r.count
}

// Trailing returns the number of bytes left over after the last full record.
func (r *Reader) Trailing() int {
	return r.trailing
}

// File is a Reader over an opened trace file.
type File struct {
	*Reader
	f *os.File
}

// Open opens the trace file at path.
func Open(path string, order binary.ByteOrder) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &File{Reader: NewReader(f, order), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
