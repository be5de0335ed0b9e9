package slots

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/benz9527/xslot/lib/infra"
)

const defaultSpinLimit = 32

// spinWait is the CAS contention backoff. It issues the CPU idle hint
// with a doubling budget and hands the P back to the scheduler once the
// budget exceeds the limit.
type spinWait struct {
	backoff uint32
	limit   uint32
}

func (w *spinWait) once() {
	if w.backoff == 0 {
		w.backoff = 1
	}
	if w.backoff <= w.limit {
		for i := uint32(0); i < w.backoff; i++ {
			infra.ProcYield(20)
		}
		w.backoff <<= 1
		return
	}
	runtime.Gosched()
	w.backoff = 1
}

// freelist is a Treiber stack of slot indices threaded through next.
// The head packs the first free index with a tag that every pop bumps,
// so a pop that observed an old head can never commit over a head
// that has been popped and pushed back in the meantime.
type freelist struct {
	_        cpu.CacheLinePad
	head     atomic.Uint64
	_        cpu.CacheLinePad
	next     []atomic.Uint32 // valid only while the slot is free
	sentinel uint32          // == capacity, end of chain
	spin     uint32

	popRetries  atomic.Uint64
	pushRetries atomic.Uint64
	stats       *slotArrayStats
}

// newFreelist chains 0 -> 1 -> ... -> capacity-1 -> sentinel.
func newFreelist(capacity uint32, spinLimit uint32) *freelist {
	fl := &freelist{
		next:     make([]atomic.Uint32, capacity),
		sentinel: capacity,
		spin:     spinLimit,
	}
	for i := uint32(0); i < capacity; i++ {
		fl.next[i].Store(i + 1)
	}
	fl.head.Store(packTaggedIndex(0, 0))
	return fl
}

func (fl *freelist) casHead(old uint64, index, tag uint32) bool {
	return fl.head.CompareAndSwap(old, packTaggedIndex(index, tag))
}

// pop removes the first free index. It reports false only if the chain
// was observed empty.
func (fl *freelist) pop() (uint32, bool) {
	var (
		sw      = spinWait{limit: fl.spin}
		retries uint64
	)
	for {
		old := fl.head.Load()
		index, tag := unpackTaggedIndex(old)
		if index == fl.sentinel {
			fl.recordRetries(casOpPop, retries)
			return fl.sentinel, false
		}
		// May be stale if another pop wins the race; then the CAS fails.
		next := fl.next[index].Load()
		if fl.casHead(old, next, tag+1) {
			fl.recordRetries(casOpPop, retries)
			return index, true
		}
		retries++
		sw.once()
	}
}

// push returns an index owned by the caller to the chain. The tag is
// carried over unchanged: a head index can only reappear after a pop,
// which already bumped the tag.
func (fl *freelist) push(index uint32) {
	var (
		sw      = spinWait{limit: fl.spin}
		retries uint64
	)
	for {
		old := fl.head.Load()
		head, tag := unpackTaggedIndex(old)
		fl.next[index].Store(head)
		if fl.casHead(old, index, tag) {
			fl.recordRetries(casOpPush, retries)
			return
		}
		retries++
		sw.once()
	}
}

func (fl *freelist) recordRetries(op casOp, retries uint64) {
	if retries == 0 {
		return
	}
	switch op {
	case casOpPop:
		fl.popRetries.Add(retries)
	case casOpPush:
		fl.pushRetries.Add(retries)
	}
	fl.stats.RecordCASRetries(op, retries)
}
