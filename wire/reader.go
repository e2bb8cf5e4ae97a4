package wire

import (
	"encoding/binary"
	"io"
	"math"
)

// Reader decodes values in network byte order from a byte slice.
type Reader struct {
	b []byte
	i int
}

func ReaderOf(b []byte) Reader {
	return Reader{b: b}
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) Reset(b []byte) {
	r.b = b
	r.i = 0
}

func (r *Reader) Remaining() int {
	return len(r.b) - r.i
}

func (r *Reader) At() int {
	return r.i
}

func (r *Reader) ReadBool() (bool, error) {
	if r.Remaining() < 1 {
		return false, io.ErrShortBuffer
	}
	v := r.b[r.i]
	r.i += 1
	return v > 0, nil
}

func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, io.ErrShortBuffer
	}
	v := r.b[r.i]
	r.i += 1
	return v, nil
}

func (r *Reader) ReadBytes(b []byte) error {
	if r.Remaining() < len(b) {
		return io.ErrShortBuffer
	}
	copy(b, r.b[r.i:])
	r.i += len(b)
	return nil
}

// ReadBytesUnsafe returns a sub-slice aliasing the underlying buffer.
func (r *Reader) ReadBytesUnsafe(size int) ([]byte, error) {
	if size < 0 || r.Remaining() < size {
		return nil, io.ErrShortBuffer
	}
	b := r.b[r.i : r.i+size]
	r.i += size
	return b, nil
}

func (r *Reader) ReadInt16() (int16, error) {
	if r.Remaining() < 2 {
		return 0, io.ErrShortBuffer
	}
	v := binary.BigEndian.Uint16(r.b[r.i:])
	r.i += 2
	return int16(v), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	if r.Remaining() < 4 {
		return 0, io.ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.b[r.i:])
	r.i += 4
	return int32(v), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	if r.Remaining() < 8 {
		return 0, io.ErrShortBuffer
	}
	v := binary.BigEndian.Uint64(r.b[r.i:])
	r.i += 8
	return int64(v), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, io.ErrShortBuffer
	}
	v := binary.BigEndian.Uint64(r.b[r.i:])
	r.i += 8
	return v, nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBinary reads a 4-byte length prefix followed by that many bytes.
// The returned slice aliases the underlying buffer.
func (r *Reader) ReadBinary() ([]byte, error) {
	size, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytesUnsafe(int(size))
}
