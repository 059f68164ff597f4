package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/cachesim/cache"
)

// ErrAddressTooWide is returned when an address has bits above
// cache.AddressWidth.
var ErrAddressTooWide = errors.New("address wider than trace records")

// Writer encodes addresses in the format Reader expects.
type Writer struct {
	w     *bufio.Writer
	order binary.ByteOrder
	buf   [AddressBytes]byte
	count uint64
}

// NewWriter creates a Writer over w. Call Flush when done.
func NewWriter(w io.Writer, order binary.ByteOrder) *Writer {
	if order == nil {
		order = binary.NativeEndian
	}

	return &Writer{
		w:     bufio.NewWriterSize(w, 64*1024),
		order: order,
	}
}

// Write appends one address.
func (w *Writer) Write(addr uint64) error {
	if cache.AddressWidth < 64 && addr>>(cache.AddressWidth%64) != 0 {
		return fmt.Errorf("%w: 0x%x", ErrAddressTooWide, addr)
	}

	if AddressBytes == 4 {
		w.order.PutUint32(w.buf[:], uint32(addr))
	} else {
		w.order.PutUint64(w.buf[:], addr)
	}

	if _, err := w.w.Write(w.buf[:]); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	w.count++

	return nil
}

// WriteAll appends every address in addrs.
func (w *Writer) WriteAll(addrs ...uint64) error {
	for _, addr := range addrs {
		if err := w.Write(addr); err != nil {
			return err
		}
	}

	return nil
}

// Count returns the number of addresses written.
func (w *Writer) Count() uint64 {
	return w.count
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteFile writes addrs as a complete trace file at path.
func WriteFile(path string, order binary.ByteOrder, addrs ...uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	w := NewWriter(f, order)
	if err := w.WriteAll(addrs...); err != nil {
		_ = f.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write trace: %w", err)
	}

	return f.Close()
}
