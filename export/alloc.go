package export

import (
	"sync"
)

// BufferAllocator supplies the raw byte buffers backing stream blocks.
// A buffer handed off to the sink is never released through the allocator;
// ownership moves with it.
type BufferAllocator interface {
	Alloc(size int) []byte

	Release(b []byte)
}

// HeapAllocator allocates plain garbage-collected buffers.
var HeapAllocator BufferAllocator = heapAllocator{}

type heapAllocator struct{}

func (heapAllocator) Alloc(size int) []byte {
	return make([]byte, size)
}

func (heapAllocator) Release(b []byte) {}

// PooledAllocator recycles buffers of a single size. Requests for other
// sizes fall through to the heap. Buffers handed off to the sink are not
// returned by the stream; they are recycled only if the sink passes them to
// Release once it is done with them.
type PooledAllocator struct {
	size int
	pool sync.Pool
}

func NewPooledAllocator(size int) *PooledAllocator {
	a := &PooledAllocator{size: size}
	a.pool.New = func() interface{} {
		return make([]byte, size)
	}
	return a
}

func (a *PooledAllocator) Alloc(size int) []byte {
	if size != a.size {
		return make([]byte, size)
	}
	return a.pool.Get().([]byte)
}

func (a *PooledAllocator) Release(b []byte) {
	if cap(b) != a.size {
		return
	}
	a.pool.Put(b[0:a.size])
}
