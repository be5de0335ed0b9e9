package slots

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benz9527/xslot/lib/infra"
)

func TestNewXSlotArrayInvalid(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		arr, err := NewXSlotArray[int](capacity)
		require.ErrorIs(t, err, ErrSlotArrayInvalidCapacity)
		require.Nil(t, arr)
	}

	_, err := NewXSlotArray[int](4, WithSlotArraySpinLimit(3))
	require.Error(t, err)
	var es infra.ErrorStack
	require.ErrorAs(t, err, &es)

	_, err = NewXSlotArray[int](4, WithSlotArrayName("  "))
	require.Error(t, err)

	arr, err := NewXSlotArray[int](4, nil, WithSlotArraySpinLimit(8))
	require.NoError(t, err)
	require.Equal(t, 4, arr.Cap())
}

func TestXSlotArrayCapacityBound(t *testing.T) {
	arr, err := NewXSlotArray[string](4)
	require.NoError(t, err)

	indices := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		index, ok := arr.TryInsert(fmt.Sprintf("v%d", i))
		require.True(t, ok)
		indices = append(indices, index)
	}
	sort.Ints(indices)
	require.Equal(t, []int{0, 1, 2, 3}, indices)
	require.Equal(t, 4, arr.Len())

	fifth := "v4"
	index, ok := arr.TryInsert(fifth)
	require.False(t, ok)
	require.Equal(t, -1, index)
	require.Equal(t, "v4", fifth)
	require.Equal(t, 4, arr.Len())

	stats := arr.Stats()
	require.Equal(t, uint64(4), stats.InsertSuccess)
	require.Equal(t, uint64(1), stats.InsertExhausted)
}

func TestXSlotArrayTakeReturnsInsertedValueOnce(t *testing.T) {
	arr, err := NewXSlotArray[*xSlotObject](8)
	require.NoError(t, err)

	objs := make(map[int]*xSlotObject, 8)
	for i := 0; i < 8; i++ {
		obj := &xSlotObject{id: fmt.Sprintf("obj-%d", i)}
		index, ok := arr.TryInsert(obj)
		require.True(t, ok)
		objs[index] = obj
	}
	for index, obj := range objs {
		got, ok := arr.Take(index)
		require.True(t, ok)
		require.Same(t, obj, got)

		got, ok = arr.Take(index)
		require.False(t, ok)
		require.Nil(t, got)
	}
	require.Zero(t, arr.Len())

	// Freed slots are reused.
	for i := 0; i < 8; i++ {
		_, ok := arr.TryInsert(&xSlotObject{id: "again"})
		require.True(t, ok)
	}
	_, ok := arr.TryInsert(&xSlotObject{id: "overflow"})
	require.False(t, ok)
}

func TestXSlotArrayTakeBoundaries(t *testing.T) {
	const n = 4
	arr, err := NewXSlotArray[int](n)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, ok := arr.TryInsert(i)
		require.True(t, ok)
	}

	for _, index := range []int{-1, n, n + 1, 1 << 30} {
		v, ok := arr.Take(index)
		require.False(t, ok, "index %d", index)
		require.Zero(t, v)
	}
	require.Equal(t, n, arr.Len())
	require.Equal(t, uint64(4), arr.Stats().TakeOutOfRange)

	// Still full: failed takes did not free anything.
	_, ok := arr.TryInsert(100)
	require.False(t, ok)
}

func TestXSlotArrayTakeEmptyIsIdempotent(t *testing.T) {
	arr, err := NewXSlotArray[int](4)
	require.NoError(t, err)

	index, ok := arr.TryInsert(42)
	require.True(t, ok)

	for i := 0; i < arr.Cap(); i++ {
		if i == index {
			continue
		}
		for j := 0; j < 3; j++ {
			_, ok := arr.Take(i)
			require.False(t, ok)
		}
	}
	require.Equal(t, 1, arr.Len())

	// The freelist is unchanged: exactly three more inserts fit.
	for i := 0; i < 3; i++ {
		_, ok := arr.TryInsert(i)
		require.True(t, ok)
	}
	_, ok = arr.TryInsert(99)
	require.False(t, ok)

	v, ok := arr.Take(index)
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestXSlotArrayDrain(t *testing.T) {
	arr, err := NewXSlotArray[int](16)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, ok := arr.TryInsert(i * 10)
		require.True(t, ok)
	}

	released := make(map[int]struct{}, 10)
	n := arr.Drain(func(index int, value int) {
		released[value] = struct{}{}
	})
	require.Equal(t, 10, n)
	require.Len(t, released, 10)
	for i := 0; i < 10; i++ {
		require.Contains(t, released, i*10)
	}
	require.Zero(t, arr.Len())
	require.Zero(t, arr.Drain(nil))

	for i := 0; i < 16; i++ {
		_, ok := arr.TryInsert(i)
		require.True(t, ok)
	}
	require.Equal(t, 16, arr.Drain(nil))
}

func TestXSlotArrayConcurrentInsertIndicesAreUnique(t *testing.T) {
	const (
		capacity  = 1024
		producers = 16
		attempts  = 128 // producers*attempts == 2*capacity
	)
	arr, err := NewXSlotArray[int](capacity)
	require.NoError(t, err)

	owners := make([]int32, capacity)
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		failed    atomic.Int64
	)
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				index, ok := arr.TryInsert(p*attempts + i)
				if !ok {
					failed.Add(1)
					continue
				}
				succeeded.Add(1)
				atomic.AddInt32(&owners[index], 1)
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, int64(capacity), succeeded.Load())
	require.Equal(t, int64(producers*attempts-capacity), failed.Load())
	for index, n := range owners {
		require.Equal(t, int32(1), n, "index %d", index)
	}

	values := make(map[int]struct{}, capacity)
	require.Equal(t, capacity, arr.Drain(func(_ int, v int) {
		values[v] = struct{}{}
	}))
	require.Len(t, values, capacity)
}

func TestXSlotArrayStressTwoProducersOneConsumer(t *testing.T) {
	xSlotArrayStressRunCore(t, 4, 2, 1, 1000)
}

func TestXSlotArrayStressManyProducersManyConsumers(t *testing.T) {
	xSlotArrayStressRunCore(t, 100, 6, 2, 20_000)
}

func TestXSlotArrayStressTinyCapacity(t *testing.T) {
	xSlotArrayStressRunCore(t, 1, 4, 4, 5000)
}

func TestXSlotArrayStressSingleProc(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))
	start := time.Now()
	xSlotArrayStressRunCore(t, 1, 4, 4, 5000)
	xSlotArrayStressRunCore(t, 4, 8, 1, 2000)
	require.Less(t, time.Since(start), 30*time.Second)
}

// Producers insert distinct tagged values, yielding while full.
// Consumers sweep every index until the producers are done and the array
// is drained. Every value must be observed exactly once.
func xSlotArrayStressRunCore(t *testing.T, capacity, producers, consumers, perProducer int) {
	_, debugLogDisabled := os.LookupEnv("DISABLE_TEST_DEBUG_LOG")

	arr, err := NewXSlotArray[uint64](capacity)
	require.NoError(t, err)

	total := producers * perProducer
	seen := make([]int32, total)
	var (
		producersDone atomic.Bool
		taken         atomic.Int64
		pwg, cwg      sync.WaitGroup
	)

	cwg.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer cwg.Done()
			for {
				done := producersDone.Load()
				found := false
				for i := 0; i < capacity; i++ {
					v, ok := arr.Take(i)
					if !ok {
						continue
					}
					found = true
					if v >= uint64(total) {
						t.Errorf("consumer: out-of-range value %d", v)
						continue
					}
					atomic.AddInt32(&seen[v], 1)
					taken.Add(1)
				}
				if done && !found && arr.Len() == 0 {
					return
				}
				if !found {
					runtime.Gosched()
				}
			}
		}()
	}

	pwg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				v := uint64(p*perProducer + i)
				for {
					if _, ok := arr.TryInsert(v); ok {
						break
					}
					// Full: let the consumers run, even on a single P.
					runtime.Gosched()
				}
			}
		}(p)
	}

	pwg.Wait()
	producersDone.Store(true)
	cwg.Wait()

	require.Equal(t, int64(total), taken.Load())
	for v := 0; v < total; v++ {
		if seen[v] != 1 {
			require.Failf(t, "exactly-once violated", "value %d seen %d times", v, seen[v])
		}
	}
	assert.Zero(t, arr.Len())

	stats := arr.Stats()
	require.Equal(t, uint64(total), stats.InsertSuccess)
	require.Equal(t, uint64(total), stats.TakeSuccess)
	if !debugLogDisabled {
		t.Logf("capacity=%d producers=%d consumers=%d stats=%+v", capacity, producers, consumers, stats)
	}
}

type xSlotObject struct {
	id string
}
