package export

import (
	"errors"
)

var (
	// ErrTxnMovingBackwards is raised when a transaction id older than the
	// open transaction reaches the stream.
	ErrTxnMovingBackwards = errors.New("active transactions moving backwards")

	// ErrGenerationMovingBackwards is raised when a reconfiguration supplies
	// a generation at or below the current one.
	ErrGenerationMovingBackwards = errors.New("generation moving backwards")

	// ErrSignatureMismatch is raised when a reconfiguration supplies a
	// signature different from the one already set.
	ErrSignatureMismatch = errors.New("signature already bound to a different table")

	// ErrTruncatingFuture is raised by RollbackTo with a mark past the
	// stream offset.
	ErrTruncatingFuture = errors.New("truncating the future")

	// ErrCapacityTooSmall is raised when a chain extension needs more bytes
	// than the default block capacity.
	ErrCapacityTooSmall = errors.New("default capacity is less than required buffer size")

	// ErrReconfigureAfterUse is raised when SetDefaultCapacity is called on
	// a stream that already has data or an open transaction.
	ErrReconfigureAfterUse = errors.New("SetDefaultCapacity only callable before the stream is used")

	ErrCorruptTuple  = errors.New("tuple reports zero export serialization size")
	ErrOutOfMemory   = errors.New("failed to claim managed buffer")
	ErrBlockOverflow = errors.New("block consumed past capacity")
)
