package wire

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer serializes values in network byte order into a caller-owned
// buffer. It never grows the buffer; a write past the end returns
// io.ErrShortBuffer and leaves the position unchanged.
type Writer struct {
	b []byte
	i int
}

func NewWriter(b []byte) *Writer {
	return &Writer{b: b}
}

func WriterOf(b []byte) Writer {
	return Writer{b: b}
}

func (w *Writer) Reset(b []byte) {
	w.b = b
	w.i = 0
}

// Position is the number of bytes written so far.
func (w *Writer) Position() int {
	return w.i
}

func (w *Writer) Remaining() int {
	return len(w.b) - w.i
}

func (w *Writer) ensure(n int) error {
	if w.Remaining() < n {
		return io.ErrShortBuffer
	}
	return nil
}

func (w *Writer) WriteByte(value byte) error {
	if err := w.ensure(1); err != nil {
		return err
	}
	w.b[w.i] = value
	w.i += 1
	return nil
}

func (w *Writer) Write(value []byte) error {
	if len(value) == 0 {
		return nil
	}
	if err := w.ensure(len(value)); err != nil {
		return err
	}
	copy(w.b[w.i:], value)
	w.i += len(value)
	return nil
}

func (w *Writer) WriteString(s string) error {
	if len(s) == 0 {
		return nil
	}
	if err := w.ensure(len(s)); err != nil {
		return err
	}
	copy(w.b[w.i:], s)
	w.i += len(s)
	return nil
}

func (w *Writer) WriteBool(value bool) error {
	if err := w.ensure(1); err != nil {
		return err
	}
	if value {
		w.b[w.i] = 1
	} else {
		w.b[w.i] = 0
	}
	w.i += 1
	return nil
}

func (w *Writer) WriteInt16(value int16) error {
	if err := w.ensure(2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(w.b[w.i:], uint16(value))
	w.i += 2
	return nil
}

func (w *Writer) WriteInt32(value int32) error {
	if err := w.ensure(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(w.b[w.i:], uint32(value))
	w.i += 4
	return nil
}

func (w *Writer) WriteInt64(value int64) error {
	if err := w.ensure(8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(w.b[w.i:], uint64(value))
	w.i += 8
	return nil
}

func (w *Writer) WriteUint64(value uint64) error {
	if err := w.ensure(8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(w.b[w.i:], value)
	w.i += 8
	return nil
}

func (w *Writer) WriteFloat64(value float64) error {
	return w.WriteUint64(math.Float64bits(value))
}

// WriteBinary writes a 4-byte length prefix followed by the raw bytes.
func (w *Writer) WriteBinary(value []byte) error {
	if err := w.ensure(4 + len(value)); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(w.b[w.i:], uint32(len(value)))
	w.i += 4
	copy(w.b[w.i:], value)
	w.i += len(value)
	return nil
}

// PutInt32At overwrites 4 bytes at an absolute offset without moving the
// position. Used for back-patching length prefixes.
func (w *Writer) PutInt32At(offset int, value int32) error {
	if offset < 0 || offset+4 > len(w.b) {
		return io.ErrShortBuffer
	}
	binary.BigEndian.PutUint32(w.b[offset:], uint32(value))
	return nil
}
