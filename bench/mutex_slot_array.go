package bench

import (
	"sync"

	"github.com/benz9527/xslot/lib/slots"
)

var _ slots.SlotArray[uint64] = (*mutexSlotArray[uint64])(nil)

// mutexSlotArray is the lock-protected baseline. Insert scans for the
// first empty cell while holding the lock.
type mutexSlotArray[T any] struct {
	mu       sync.Locker
	cells    []*T
	occupied int
	stats    slots.SlotArrayStats
}

func newMutexSlotArray[T any](capacity int, mu sync.Locker) *mutexSlotArray[T] {
	return &mutexSlotArray[T]{
		mu:    mu,
		cells: make([]*T, capacity),
	}
}

func (arr *mutexSlotArray[T]) TryInsert(value T) (int, bool) {
	arr.mu.Lock()
	defer arr.mu.Unlock()
	for i := range arr.cells {
		if arr.cells[i] == nil {
			arr.cells[i] = &value
			arr.occupied++
			arr.stats.InsertSuccess++
			return i, true
		}
	}
	arr.stats.InsertExhausted++
	return -1, false
}

func (arr *mutexSlotArray[T]) Take(index int) (T, bool) {
	var zero T
	arr.mu.Lock()
	defer arr.mu.Unlock()
	if index < 0 || index >= len(arr.cells) {
		arr.stats.TakeOutOfRange++
		return zero, false
	}
	v := arr.cells[index]
	if v == nil {
		arr.stats.TakeEmpty++
		return zero, false
	}
	arr.cells[index] = nil
	arr.occupied--
	arr.stats.TakeSuccess++
	return *v, true
}

func (arr *mutexSlotArray[T]) Drain(fn func(index int, value T)) int {
	n := 0
	for i := range arr.cells {
		if v, ok := arr.Take(i); ok {
			if fn != nil {
				fn(i, v)
			}
			n++
		}
	}
	return n
}

func (arr *mutexSlotArray[T]) Close() error {
	return nil
}

func (arr *mutexSlotArray[T]) Cap() int {
	return len(arr.cells)
}

func (arr *mutexSlotArray[T]) Len() int {
	arr.mu.Lock()
	defer arr.mu.Unlock()
	return arr.occupied
}

func (arr *mutexSlotArray[T]) Stats() slots.SlotArrayStats {
	arr.mu.Lock()
	defer arr.mu.Unlock()
	return arr.stats
}
