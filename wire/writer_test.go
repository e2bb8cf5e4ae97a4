package wire

import (
	"bytes"
	"io"
	"testing"
)

func TestWriterRoundTrip(t *testing.T) {
	buf := make([]byte, 128)
	w := NewWriter(buf)

	if err := w.WriteInt32(-7); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteInt64(1<<40 + 3); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFloat64(3.5); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBool(true); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteByte(0xAB); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBinary([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString("raw"); err != nil {
		t.Fatal(err)
	}

	r := NewReader(buf[0:w.Position()])
	if v, err := r.ReadInt32(); err != nil || v != -7 {
		t.Fatal(v, err)
	}
	if v, err := r.ReadInt64(); err != nil || v != 1<<40+3 {
		t.Fatal(v, err)
	}
	if v, err := r.ReadFloat64(); err != nil || v != 3.5 {
		t.Fatal(v, err)
	}
	if v, err := r.ReadBool(); err != nil || !v {
		t.Fatal(v, err)
	}
	if v, err := r.ReadByte(); err != nil || v != 0xAB {
		t.Fatal(v, err)
	}
	if v, err := r.ReadBinary(); err != nil || !bytes.Equal(v, []byte("hello")) {
		t.Fatal(v, err)
	}
	raw := make([]byte, 3)
	if err := r.ReadBytes(raw); err != nil || string(raw) != "raw" {
		t.Fatal(raw, err)
	}
	if r.Remaining() != 0 {
		t.Fatal("remaining", r.Remaining())
	}
}

func TestWriterNetworkByteOrder(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	if err := w.WriteInt32(1); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[0:4], []byte{0, 0, 0, 1}) {
		t.Fatal(buf[0:4])
	}
	if err := w.WriteInt64(0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[4:12], []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatal(buf[4:12])
	}
}

func TestWriterShortBuffer(t *testing.T) {
	w := NewWriter(make([]byte, 4))
	if err := w.WriteInt64(1); err != io.ErrShortBuffer {
		t.Fatal(err)
	}
	if w.Position() != 0 {
		t.Fatal("position moved on failed write")
	}
	if err := w.WriteInt32(1); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteByte(1); err != io.ErrShortBuffer {
		t.Fatal(err)
	}
}

func TestWriterPutInt32At(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	if err := w.WriteInt32(0); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteInt32(9); err != nil {
		t.Fatal(err)
	}
	if err := w.PutInt32At(0, 42); err != nil {
		t.Fatal(err)
	}
	r := NewReader(buf)
	if v, err := r.ReadInt32(); err != nil || v != 42 {
		t.Fatal(v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != 9 {
		t.Fatal(v, err)
	}
	if err := w.PutInt32At(6, 1); err != io.ErrShortBuffer {
		t.Fatal(err)
	}
}

func TestReaderShortBuffer(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 9})
	if _, err := r.ReadBinary(); err != io.ErrShortBuffer {
		t.Fatal(err)
	}
}
