package export

import (
	"github.com/moontrade/exportstream/logger"
	"github.com/moontrade/exportstream/wire"
)

const (
	metadataColumnCount = 6

	// metadataSize is the serialized width of the metadata columns: six
	// big-endian int64 fields.
	metadataSize = metadataColumnCount * 8

	// MaxBufferAge is the age in milliseconds past which a periodic flush
	// seals the current block even when it is not full.
	MaxBufferAge = 4000

	// DefaultCapacity is the default block size. It must be at least the
	// largest single serialized tuple the engine will ever produce.
	DefaultCapacity = 2 * 1024 * 1024
)

// TupleStream accumulates row-change records for one partition's export
// stream, frames them into capacity-bounded blocks tagged with transaction
// and generation metadata, and hands fully committed blocks to the sink.
//
// All methods must be called from the partition's owning execution thread;
// the stream performs no internal synchronization. All invariant violations
// are fatal and abort the calling context through logger.Panic.
type TupleStream struct {
	partitionID int32
	siteID      int32
	sink        Sink
	alloc       BufferAllocator

	lastFlush       int64
	defaultCapacity int

	// uso is the universal stream offset: the only counter that survives
	// block boundaries. Rollback is the only thing that rewinds it.
	uso           int64
	currBlock     *StreamBlock
	pendingBlocks []*StreamBlock

	openTxnID      int64
	openTxnUSO     int64
	committedTxnID int64
	committedUSO   int64

	signature           string
	generation          int64
	generationValid     bool
	prevBlockGeneration int64
	prevBlockGenValid   bool
}

// NewTupleStream creates a stream for one partition. The sink receives
// every committed block; a nil alloc defaults to HeapAllocator.
func NewTupleStream(partitionID, siteID int32, sink Sink, alloc BufferAllocator) *TupleStream {
	if sink == nil {
		logger.Panic(nil, "partition", partitionID, "tuple stream requires a sink")
	}
	if alloc == nil {
		alloc = HeapAllocator
	}
	s := &TupleStream{
		partitionID:     partitionID,
		siteID:          siteID,
		sink:            sink,
		alloc:           alloc,
		defaultCapacity: DefaultCapacity,
	}
	s.extendBufferChain(s.defaultCapacity)
	return s
}

// USO is the universal stream offset: the end of all bytes ever appended.
func (s *TupleStream) USO() int64 {
	return s.uso
}

// CommittedUSO is the drain horizon: the prefix of the stream known to
// belong to durably committed transactions.
func (s *TupleStream) CommittedUSO() int64 {
	return s.committedUSO
}

func (s *TupleStream) Signature() string {
	return s.signature
}

// Generation returns the current schema generation and whether one has been
// assigned yet.
func (s *TupleStream) Generation() (int64, bool) {
	return s.generation, s.generationValid
}

// SetDefaultCapacity re-sizes the blocks the chain allocates. Only callable
// before the stream has been used; the chain is reset afterwards.
func (s *TupleStream) SetDefaultCapacity(capacity int) {
	if capacity <= 0 {
		logger.Panic(ErrCapacityTooSmall, "capacity", int64(capacity))
	}
	if s.uso != 0 || s.openTxnID != 0 || s.openTxnUSO != 0 || s.committedTxnID != 0 {
		logger.Panic(ErrReconfigureAfterUse, "uso", s.uso, "openTxn", s.openTxnID)
	}
	s.cleanupManagedBuffers()
	s.defaultCapacity = capacity
	s.extendBufferChain(s.defaultCapacity)
}

// Close discards the current block and every pending block. Essentially,
// shutdown.
func (s *TupleStream) Close() error {
	s.cleanupManagedBuffers()
	return nil
}

func (s *TupleStream) cleanupManagedBuffers() {
	if s.currBlock != nil {
		s.discardBlock(s.currBlock)
		s.currBlock = nil
	}
	for _, sb := range s.pendingBlocks {
		s.discardBlock(sb)
	}
	s.pendingBlocks = s.pendingBlocks[:0]
}

// SetSignatureAndGeneration binds the stream to a table signature and
// advances the schema generation. Advancing past a live generation quiesces
// its bytes first so the drainer can close it out with an end-of-stream
// marker.
func (s *TupleStream) SetSignatureAndGeneration(signature string, generation int64) {
	if s.generationValid && generation <= s.generation {
		logger.Panic(ErrGenerationMovingBackwards, "generation", generation, "current", s.generation)
	}
	if s.signature != "" && signature != s.signature {
		logger.Panic(ErrSignatureMismatch, "signature", signature, "current", s.signature)
	}

	if s.generationValid && generation != s.generation {
		s.commit(generation, generation)
		s.extendBufferChain(0)
		s.drainPendingBlocks()
	}
	s.signature = signature
	s.generation = generation
	s.generationValid = true
}

// commit advances the open and committed frontiers. This is the only
// function that may modify openTxnID, openTxnUSO, committedTxnID and
// committedUSO.
//
// The engine may hand the stream transactions slightly out of strict id
// order (single-partition sneak-ins, speculative execution), so the two-step
// form below handles both "a new transaction is starting" and "the open
// transaction has become durable" without losing bytes.
func (s *TupleStream) commit(lastCommittedTxnID, currentTxnID int64) {
	if currentTxnID < s.openTxnID {
		logger.Panic(ErrTxnMovingBackwards, "txn", currentTxnID, "open", s.openTxnID)
	}

	// More data for an ongoing transaction with no new committed data.
	if currentTxnID == s.openTxnID && lastCommittedTxnID == s.committedTxnID {
		return
	}

	// The current txn id advanced: the old open transaction is committed at
	// this boundary and the current transaction becomes the open one.
	if s.openTxnID < currentTxnID {
		s.committedUSO = s.uso
		s.committedTxnID = s.openTxnID
		s.openTxnID = currentTxnID
		s.openTxnUSO = s.uso
	}

	// The durable watermark may cover the open transaction itself.
	if s.openTxnID <= lastCommittedTxnID {
		s.committedUSO = s.uso
		s.committedTxnID = s.openTxnID
	}
}

// drainPendingBlocks releases every fully committed block at the front of
// the pending queue, injecting an end-of-stream marker whenever the
// generation advances between released blocks.
func (s *TupleStream) drainPendingBlocks() {
	for len(s.pendingBlocks) > 0 {
		block := s.pendingBlocks[0]
		gen, genValid := block.GenerationID()
		if s.prevBlockGenValid && genValid && gen > s.prevBlockGeneration {
			// The previous generation is closed; tell the top end before
			// any bytes of the new generation are delivered.
			eos := newStreamBlock(nil, 0, block.USO())
			eos.setGenerationID(s.prevBlockGeneration)
			eos.setSignature(s.signature)
			eos.setEndOfStream(true)
			s.pushExportBlock(eos)
		}
		s.prevBlockGeneration = gen
		s.prevBlockGenValid = genValid

		// A block stays queued until its entire byte range is committed.
		if s.committedUSO >= block.USO()+int64(block.Offset()) {
			s.pushExportBlock(block)
			s.pendingBlocks = s.pendingBlocks[1:]
		} else {
			break
		}
	}
}

// RollbackTo discards all bytes with a stream offset at or past mark. The
// caller obtained mark as the return value of a prior AppendTuple.
func (s *TupleStream) RollbackTo(mark int64) {
	if mark > s.uso {
		logger.Panic(ErrTruncatingFuture, "mark", mark, "uso", s.uso)
	}

	// Back up the universal stream counter.
	s.uso = mark

	// Working from newest to oldest block, throw away blocks fully after
	// mark; the block containing mark is truncated and becomes current.
	if s.currBlock != nil && s.currBlock.USO() < mark {
		s.currBlock.truncateTo(mark)
		return
	}
	if s.currBlock != nil {
		s.discardBlock(s.currBlock)
		s.currBlock = nil
	}
	for n := len(s.pendingBlocks); n > 0; n = len(s.pendingBlocks) {
		sb := s.pendingBlocks[n-1]
		s.pendingBlocks = s.pendingBlocks[:n-1]
		if sb.USO() >= mark {
			s.discardBlock(sb)
		} else {
			sb.truncateTo(mark)
			s.currBlock = sb
			break
		}
	}
}

// discardBlock releases a managed buffer that will not be handed off.
func (s *TupleStream) discardBlock(sb *StreamBlock) {
	if buf := sb.take(); buf != nil {
		s.alloc.Release(buf)
	}
}

// extendBufferChain seals the current block into the pending queue and
// installs a freshly allocated one tagged with the current generation and
// signature.
func (s *TupleStream) extendBufferChain(minLength int) {
	if s.defaultCapacity < minLength {
		logger.Panic(ErrCapacityTooSmall, "capacity", int64(s.defaultCapacity), "required", int64(minLength))
	}

	if s.currBlock != nil {
		s.pendingBlocks = append(s.pendingBlocks, s.currBlock)
		s.currBlock = nil
	}

	buf := s.alloc.Alloc(s.defaultCapacity)
	if buf == nil {
		logger.Panic(ErrOutOfMemory, "capacity", int64(s.defaultCapacity))
	}

	s.currBlock = newStreamBlock(buf, s.defaultCapacity, s.uso)
	if s.generationValid {
		s.currBlock.setGenerationID(s.generation)
	}
	s.currBlock.setSignature(s.signature)
}

// PeriodicFlush seals the current block and re-runs commit and drain so
// committed bytes reach the sink even when no tuples arrive. A negative
// timeInMillis forces the flush; otherwise it only fires once the last
// flush is older than MaxBufferAge.
func (s *TupleStream) PeriodicFlush(timeInMillis, lastCommittedTxnID, currentTxnID int64) {
	if timeInMillis >= 0 && timeInMillis-s.lastFlush <= MaxBufferAge {
		return
	}
	if timeInMillis > 0 {
		s.lastFlush = timeInMillis
	}

	// The engine hands periodicFlush whatever transaction executed most
	// recently, whether or not it touched this stream. commit enforces the
	// forward-motion invariant, so feed it whichever of currentTxnID or the
	// open transaction keeps that invariant intact.
	txnID := currentTxnID
	if s.openTxnID > currentTxnID {
		txnID = s.openTxnID
	}

	s.extendBufferChain(0)
	s.commit(lastCommittedTxnID, txnID)
	s.drainPendingBlocks()
}

// AppendTuple serializes tuple with its metadata header into the current
// block, advancing the stream offset. If txnID begins a new transaction,
// previously open data is committed first. The returned offset marks the
// point in the stream the caller can RollbackTo if this append must be
// undone.
func (s *TupleStream) AppendTuple(lastCommittedTxnID, txnID, seqNo, timestamp, generationID int64,
	tuple Tuple, op Operation) int64 {

	// Transaction ids applied to this stream always move forward in time.
	if txnID < s.openTxnID {
		logger.Panic(ErrTxnMovingBackwards, "txn", txnID, "open", s.openTxnID)
	}

	s.commit(lastCommittedTxnID, txnID)

	// Upper bound on the bytes required to serialize the tuple.
	tupleMaxLength, rowHeaderSize := s.computeOffsets(tuple)

	if !s.generationValid || generationID > s.generation {
		// Advance the generation and seal the old block, which keeps its
		// own tag; the fresh block carries the new generation and the
		// drainer closes out the prior generation when the blocks drain.
		s.generation = generationID
		s.generationValid = true
		s.extendBufferChain(s.defaultCapacity)
	}
	if s.currBlock == nil {
		s.extendBufferChain(s.defaultCapacity)
	}

	// Not enough room for the worst case tuple: seal the block and start a
	// fresh one. extendBufferChain always allocates defaultCapacity; the
	// argument only validates that the tuple can ever fit.
	if s.currBlock.Offset()+tupleMaxLength > s.defaultCapacity {
		s.extendBufferChain(tupleMaxLength)
	}

	s.drainPendingBlocks()

	// First tuple in the block stamps the framing metadata.
	if s.currBlock.Offset() == 0 {
		s.currBlock.setGenerationID(s.generation)
		s.currBlock.setSignature(s.signature)
	}

	bytesWritten, err := s.writeRow(rowHeaderSize, txnID, seqNo, timestamp, tuple, op)
	if err != nil {
		logger.Panic(err, "txn", txnID, "uso", s.uso, "append tuple failed")
	}

	s.currBlock.consumed(rowHeaderSize + bytesWritten)

	startingUSO := s.uso
	s.uso += int64(rowHeaderSize + bytesWritten)
	return startingUSO
}

// writeRow serializes the row header, the metadata columns and the tuple
// payload into the current block. Returns the bytes written past the row
// header.
func (s *TupleStream) writeRow(rowHeaderSize int, txnID, seqNo, timestamp int64,
	tuple Tuple, op Operation) (int, error) {

	row := s.currBlock.mutableData()

	// Zero the row header; this also marks every column non-null.
	for i := 0; i < rowHeaderSize; i++ {
		row[i] = 0
	}

	// The null mask lives after the 4-byte row length prefix.
	nullMask := row[4:rowHeaderSize]

	// Position the serializer past the full row header.
	io := wire.NewWriter(row[rowHeaderSize:])

	if err := io.WriteInt64(txnID); err != nil {
		return 0, err
	}
	if err := io.WriteInt64(timestamp); err != nil {
		return 0, err
	}
	if err := io.WriteInt64(seqNo); err != nil {
		return 0, err
	}
	if err := io.WriteInt64(int64(s.partitionID)); err != nil {
		return 0, err
	}
	if err := io.WriteInt64(int64(s.siteID)); err != nil {
		return 0, err
	}
	if err := io.WriteInt64(int64(op)); err != nil {
		return 0, err
	}

	if err := tuple.SerializeToExport(io, metadataColumnCount, nullMask); err != nil {
		return 0, err
	}

	// The row length includes the null mask but not its own 4 bytes.
	hdr := wire.NewWriter(row[0:4])
	if err := hdr.WriteInt32(int32(io.Position() + rowHeaderSize - 4)); err != nil {
		return 0, err
	}

	return io.Position(), nil
}

// computeOffsets returns the worst case serialized row size and the row
// header size for tuple.
func (s *TupleStream) computeOffsets(tuple Tuple) (tupleMaxLength, rowHeaderSize int) {
	// Round the column count up to the next multiple of 8 and divide by 8.
	columnCount := tuple.ValueCount() + metadataColumnCount
	nullMaskLength := ((columnCount + 7) & -8) >> 3

	// The row header is the 32-bit row length plus the null mask.
	rowHeaderSize = 4 + nullMaskLength

	dataSize := tuple.MaxExportSerializedSize()
	if dataSize == 0 {
		logger.Panic(ErrCorruptTuple, "uso", s.uso)
	}

	return rowHeaderSize + metadataSize + dataSize, rowHeaderSize
}

// pushExportBlock hands a drained block to the sink. The sink takes
// ownership of the bytes; the block metadata is dropped here.
func (s *TupleStream) pushExportBlock(sb *StreamBlock) {
	gen, _ := sb.GenerationID()
	if sb.Offset() > 0 {
		logger.Trace("generation", gen, "uso", sb.USO(), "offset", int64(sb.Offset()),
			"eos", sb.EndOfStream(), "push export buffer")
		data := sb.take()
		s.sink.PushExportBuffer(gen, s.partitionID, sb.Signature(),
			&Buffer{USO: sb.USO(), Data: data[0:sb.Offset()]}, false, sb.EndOfStream())
		return
	}
	if sb.EndOfStream() {
		logger.Trace("generation", gen, "uso", sb.USO(), "push end of stream")
		s.sink.PushExportBuffer(gen, s.partitionID, sb.Signature(), nil, false, true)
	}
	// An empty block that is not an end-of-stream marker is dropped.
	s.discardBlock(sb)
}
