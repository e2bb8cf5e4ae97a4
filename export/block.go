package export

import (
	"github.com/moontrade/exportstream/logger"
)

// StreamBlock is a fixed-capacity byte buffer plus the framing metadata the
// top end needs: the universal stream offset of its first byte, the bytes
// consumed so far, the schema generation of its contents, the table
// signature and the end-of-stream flag.
//
// The chain owns both the buffer and the metadata until the block is either
// discarded or pushed to the sink. A push moves the buffer out through
// take(); the metadata object is dropped locally.
type StreamBlock struct {
	buf         []byte
	capacity    int
	uso         int64
	offset      int
	generation  int64
	genValid    bool
	signature   string
	endOfStream bool
}

func newStreamBlock(buf []byte, capacity int, uso int64) *StreamBlock {
	return &StreamBlock{
		buf:      buf,
		capacity: capacity,
		uso:      uso,
	}
}

// USO is the universal stream offset of the block's first byte. The block
// represents the byte range [USO, USO+Offset).
func (b *StreamBlock) USO() int64 {
	return b.uso
}

// Offset is the number of bytes consumed in the block.
func (b *StreamBlock) Offset() int {
	return b.offset
}

func (b *StreamBlock) Capacity() int {
	return b.capacity
}

func (b *StreamBlock) Remaining() int {
	return b.capacity - b.offset
}

// GenerationID returns the schema generation of the block's contents and
// whether one has been stamped yet.
func (b *StreamBlock) GenerationID() (int64, bool) {
	return b.generation, b.genValid
}

func (b *StreamBlock) Signature() string {
	return b.signature
}

func (b *StreamBlock) EndOfStream() bool {
	return b.endOfStream
}

func (b *StreamBlock) setGenerationID(generation int64) {
	b.generation = generation
	b.genValid = true
}

func (b *StreamBlock) setSignature(signature string) {
	b.signature = signature
}

func (b *StreamBlock) setEndOfStream(endOfStream bool) {
	b.endOfStream = endOfStream
}

// data is the consumed prefix of the buffer.
func (b *StreamBlock) data() []byte {
	return b.buf[0:b.offset]
}

// mutableData is the writable region past the consumed prefix.
func (b *StreamBlock) mutableData() []byte {
	return b.buf[b.offset:b.capacity]
}

// consumed advances the offset by n freshly written bytes.
func (b *StreamBlock) consumed(n int) {
	b.offset += n
	if b.offset > b.capacity {
		logger.Panic(ErrBlockOverflow, "offset", int64(b.offset), "capacity", int64(b.capacity))
	}
}

// truncateTo rewinds the offset so the block ends at stream offset mark.
// Used by rollback; a mark before the block start clamps the offset to 0.
func (b *StreamBlock) truncateTo(mark int64) {
	offset := int(mark - b.uso)
	if offset < 0 {
		offset = 0
	}
	b.offset = offset
}

// take moves the buffer out of the block. The caller owns the returned
// bytes; the block keeps no reference.
func (b *StreamBlock) take() []byte {
	buf := b.buf
	b.buf = nil
	return buf
}
