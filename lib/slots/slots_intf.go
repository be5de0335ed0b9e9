package slots

import (
	"errors"
)

var (
	ErrSlotArrayInvalidCapacity = errors.New("[xslot] capacity out of range")
	ErrSlotArrayExhausted       = errors.New("[xslot] capacity exhausted")
)

// SlotArray is a fixed-capacity container whose cells are addressed by
// index. All methods are safe for concurrent use by any number of
// producers and consumers and never take a lock.
type SlotArray[T any] interface {
	// TryInsert claims a free slot and publishes value into it.
	// It returns false when every slot is occupied; nothing is stored in
	// that case and value stays with the caller.
	TryInsert(value T) (int, bool)
	// Take empties the slot at index and returns the value it held.
	// Out-of-range indices and empty slots report false and change nothing.
	Take(index int) (T, bool)
	// Drain takes every occupied slot once and hands each value to fn.
	// fn may be nil.
	Drain(fn func(index int, value T)) int
	// Cap is the fixed number of slots.
	Cap() int
	// Len is a snapshot of the occupied slots count.
	Len() int
	Stats() SlotArrayStats
	// Close detaches the array from the metrics pipeline. The array keeps
	// working afterwards. Calling Close more than once is a no-op.
	Close() error
}

type SlotArrayStats struct {
	InsertSuccess   uint64
	InsertExhausted uint64
	TakeSuccess     uint64
	TakeEmpty       uint64
	TakeOutOfRange  uint64
	PopCASRetries   uint64
	PushCASRetries  uint64
}
