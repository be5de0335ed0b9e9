package bench

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/benz9527/xslot/lib/infra"
)

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

var _ sync.Locker = (*spinMutex)(nil)

// spinMutex is a test-and-set lock. Contended callers issue the CPU idle
// hint with a doubling budget, then fall back to the scheduler.
type spinMutex uint32

func (m *spinMutex) Lock() {
	backoff := uint8(1)
	for !atomic.CompareAndSwapUint32((*uint32)(m), unlocked, locked) {
		if backoff <= 32 {
			for i := uint8(0); i < backoff; i++ {
				infra.ProcYield(20)
			}
			backoff <<= 1
		} else {
			runtime.Gosched()
		}
	}
}

func (m *spinMutex) Unlock() {
	if !atomic.CompareAndSwapUint32((*uint32)(m), locked, unlocked) {
		panic("[xslot-bench] unlock of unlocked spin mutex")
	}
}

func newLocker(kind MutexKind) sync.Locker {
	switch kind {
	case SpinMutex:
		return new(spinMutex)
	default:
	}
	return &sync.Mutex{}
}
