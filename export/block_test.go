package export

import (
	"testing"
)

func TestStreamBlockConsumed(t *testing.T) {
	b := newStreamBlock(make([]byte, 64), 64, 128)
	if b.Remaining() != 64 {
		t.Fatal(b.Remaining())
	}
	b.consumed(40)
	if b.Offset() != 40 || b.Remaining() != 24 {
		t.Fatal(b.Offset(), b.Remaining())
	}
	if len(b.mutableData()) != 24 {
		t.Fatal(len(b.mutableData()))
	}
	if len(b.data()) != 40 {
		t.Fatal(len(b.data()))
	}
	expectPanic(t, func() {
		b.consumed(25)
	})
}

func TestStreamBlockTruncateTo(t *testing.T) {
	b := newStreamBlock(make([]byte, 64), 64, 100)
	b.consumed(50)

	// Cut point inside the block.
	b.truncateTo(120)
	if b.Offset() != 20 {
		t.Fatal(b.Offset())
	}

	// A mark before the block start clamps to zero.
	b.truncateTo(90)
	if b.Offset() != 0 {
		t.Fatal(b.Offset())
	}
}

func TestStreamBlockTake(t *testing.T) {
	buf := make([]byte, 16)
	b := newStreamBlock(buf, 16, 0)
	b.consumed(4)
	taken := b.take()
	if len(taken) != 16 {
		t.Fatal(len(taken))
	}
	if b.take() != nil {
		t.Fatal("second take should return nil")
	}
}
