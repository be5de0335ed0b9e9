package slots

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/benz9527/xslot/lib/infra"
)

var _ SlotArray[struct{}] = (*xSlotArray[struct{}])(nil)

// xSlotArray composes the freelist of unoccupied indices with one
// atomically swappable owned box per slot.
//
// FREE -> OCCUPIED: pop an index, then store the box (release).
// OCCUPIED -> FREE: swap the box out (acquire), then push the index.
//
// A popped index is reachable by nobody but the popper until its box is
// stored, and a swapped-out box belongs to the taker alone, so each value
// changes hands exactly once.
type xSlotArray[T any] struct {
	fl       *freelist
	slots    []atomic.Pointer[T]
	_        cpu.CacheLinePad
	occupied atomic.Int64
	_        cpu.CacheLinePad
	stats    *slotArrayStats

	insertSuccess   atomic.Uint64
	insertExhausted atomic.Uint64
	takeSuccess     atomic.Uint64
	takeEmpty       atomic.Uint64
	takeOutOfRange  atomic.Uint64
}

func NewXSlotArray[T any](capacity int, opts ...SlotArrayOption) (SlotArray[T], error) {
	if capacity <= 0 || uint64(capacity) > MaxSlotArrayCapacity {
		return nil, infra.WrapErrorStackWithMessage(ErrSlotArrayInvalidCapacity, "[xslot] new slot array")
	}
	o := &slotArrayOptions{
		name:      "default",
		spinLimit: defaultSpinLimit,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, infra.WrapErrorStack(err)
		}
	}

	arr := &xSlotArray[T]{
		fl:    newFreelist(uint32(capacity), o.spinLimit),
		slots: make([]atomic.Pointer[T], capacity),
	}
	if o.isStatsEnabled {
		arr.stats = newSlotArrayStats(o.name, capacity, arr.occupied.Load)
		arr.fl.stats = arr.stats
	}
	return arr, nil
}

func (arr *xSlotArray[T]) publish(index uint32, value T) {
	box := new(T)
	*box = value
	arr.slots[index].Store(box)
}

func (arr *xSlotArray[T]) claimAndClear(index uint32) *T {
	return arr.slots[index].Swap(nil)
}

func (arr *xSlotArray[T]) TryInsert(value T) (int, bool) {
	index, ok := arr.fl.pop()
	if !ok {
		arr.insertExhausted.Add(1)
		arr.stats.RecordInsert(false)
		return -1, false
	}
	arr.occupied.Add(1)
	arr.publish(index, value)
	arr.insertSuccess.Add(1)
	arr.stats.RecordInsert(true)
	return int(index), true
}

func (arr *xSlotArray[T]) Take(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(arr.slots) {
		arr.takeOutOfRange.Add(1)
		arr.stats.RecordTake(takeOutOfRange)
		return zero, false
	}
	box := arr.claimAndClear(uint32(index))
	if box == nil {
		// Never inserted, already taken, or claimed but not yet published.
		arr.takeEmpty.Add(1)
		arr.stats.RecordTake(takeEmpty)
		return zero, false
	}
	value := *box
	arr.fl.push(uint32(index))
	arr.occupied.Add(-1)
	arr.takeSuccess.Add(1)
	arr.stats.RecordTake(takeOK)
	return value, true
}

func (arr *xSlotArray[T]) Drain(fn func(index int, value T)) int {
	drained := 0
	for i := range arr.slots {
		value, ok := arr.Take(i)
		if !ok {
			continue
		}
		drained++
		if fn != nil {
			fn(i, value)
		}
	}
	return drained
}

func (arr *xSlotArray[T]) Close() error {
	return infra.WrapErrorStack(arr.stats.unregister())
}

func (arr *xSlotArray[T]) Cap() int {
	return len(arr.slots)
}

func (arr *xSlotArray[T]) Len() int {
	n := arr.occupied.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (arr *xSlotArray[T]) Stats() SlotArrayStats {
	return SlotArrayStats{
		InsertSuccess:   arr.insertSuccess.Load(),
		InsertExhausted: arr.insertExhausted.Load(),
		TakeSuccess:     arr.takeSuccess.Load(),
		TakeEmpty:       arr.takeEmpty.Load(),
		TakeOutOfRange:  arr.takeOutOfRange.Load(),
		PopCASRetries:   arr.fl.popRetries.Load(),
		PushCASRetries:  arr.fl.pushRetries.Load(),
	}
}
