package export

import (
	"github.com/moontrade/exportstream/wire"
)

// Operation tags an exported row as the product of an insert or a delete.
type Operation int8

const (
	OpDelete Operation = 0
	OpInsert Operation = 1
)

// Tuple is the row collaborator serialized into the stream. The stream only
// relies on the declared value count, a worst-case size estimate and the
// export serialization itself.
type Tuple interface {
	// ValueCount returns the number of columns in the tuple, excluding the
	// metadata columns the stream prepends.
	ValueCount() int

	// MaxExportSerializedSize returns an upper bound on the bytes the tuple
	// writes during SerializeToExport. 0 marks the tuple as corrupt.
	MaxExportSerializedSize() int

	// SerializeToExport writes the tuple's column values. Null columns are
	// flagged in nullMask at bit position skipCols+i instead of being
	// written.
	SerializeToExport(w *wire.Writer, skipCols int, nullMask []byte) error
}

// MarkNull flags column index as null. Bits are assigned MSB first.
func MarkNull(nullMask []byte, index int) {
	nullMask[index>>3] |= 0x80 >> (index & 7)
}

// IsNull reports whether column index is flagged null.
func IsNull(nullMask []byte, index int) bool {
	return nullMask[index>>3]&(0x80>>(index&7)) != 0
}

type ValueKind int8

const (
	ValueNull ValueKind = iota
	ValueInt64
	ValueFloat64
	ValueString
	ValueBinary
)

// Value is a single typed column value.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bin   []byte
}

func NullValue() Value {
	return Value{Kind: ValueNull}
}

func Int64Value(v int64) Value {
	return Value{Kind: ValueInt64, Int: v}
}

func Float64Value(v float64) Value {
	return Value{Kind: ValueFloat64, Float: v}
}

func StringValue(v string) Value {
	return Value{Kind: ValueString, Str: v}
}

func BinaryValue(v []byte) Value {
	return Value{Kind: ValueBinary, Bin: v}
}

// ValueTuple is a ready-made Tuple over typed column values. Integers and
// floats serialize as fixed 8-byte fields, strings and binaries carry a
// 4-byte length prefix, nulls occupy no bytes and set their null mask bit.
type ValueTuple struct {
	values []Value
}

func NewValueTuple(values ...Value) *ValueTuple {
	return &ValueTuple{values: values}
}

func (t *ValueTuple) ValueCount() int {
	return len(t.values)
}

func (t *ValueTuple) MaxExportSerializedSize() int {
	size := 0
	for i := range t.values {
		switch t.values[i].Kind {
		case ValueInt64, ValueFloat64:
			size += 8
		case ValueString:
			size += 4 + len(t.values[i].Str)
		case ValueBinary:
			size += 4 + len(t.values[i].Bin)
		}
	}
	if size == 0 && len(t.values) > 0 {
		// An all-null tuple writes no bytes but is not corrupt.
		size = 1
	}
	return size
}

func (t *ValueTuple) SerializeToExport(w *wire.Writer, skipCols int, nullMask []byte) error {
	for i := range t.values {
		v := &t.values[i]
		switch v.Kind {
		case ValueNull:
			MarkNull(nullMask, skipCols+i)
		case ValueInt64:
			if err := w.WriteInt64(v.Int); err != nil {
				return err
			}
		case ValueFloat64:
			if err := w.WriteFloat64(v.Float); err != nil {
				return err
			}
		case ValueString:
			if err := w.WriteInt32(int32(len(v.Str))); err != nil {
				return err
			}
			if err := w.WriteString(v.Str); err != nil {
				return err
			}
		case ValueBinary:
			if err := w.WriteBinary(v.Bin); err != nil {
				return err
			}
		}
	}
	return nil
}
