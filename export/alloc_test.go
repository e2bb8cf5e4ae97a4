package export

import (
	"testing"
)

func TestPooledAllocator(t *testing.T) {
	a := NewPooledAllocator(64)

	b := a.Alloc(64)
	if len(b) != 64 || cap(b) != 64 {
		t.Fatal(len(b), cap(b))
	}
	b[0] = 0xFF
	a.Release(b)

	// A recycled buffer comes back full length regardless of what the
	// previous owner sliced it down to.
	c := a.Alloc(64)
	if len(c) != 64 {
		t.Fatal(len(c))
	}

	// Other sizes fall through to the heap and are not retained.
	d := a.Alloc(32)
	if len(d) != 32 {
		t.Fatal(len(d))
	}
	a.Release(d)

	e := a.Alloc(64)
	if len(e) != 64 {
		t.Fatal(len(e))
	}
}

func TestHeapAllocator(t *testing.T) {
	b := HeapAllocator.Alloc(16)
	if len(b) != 16 {
		t.Fatal(len(b))
	}
	HeapAllocator.Release(b)
}
