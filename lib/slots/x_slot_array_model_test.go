package slots

import (
	"sort"
	"testing"

	"pgregory.net/rapid"
)

func occupiedIndices(model map[int]uint64) []int {
	indices := make([]int, 0, len(model))
	for i := range model {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// A single goroutine against a map of the occupied slots.
func TestXSlotArrayMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
		arr, err := NewXSlotArray[uint64](capacity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		model := map[int]uint64{}

		t.Repeat(
			map[string]func(*rapid.T){
				"insert": func(t *rapid.T) {
					v := rapid.Uint64().Draw(t, "value")
					index, ok := arr.TryInsert(v)
					if len(model) == capacity {
						if ok || index != -1 {
							t.Fatalf("expected a full array, got index %d", index)
						}
						return
					}
					if !ok {
						t.Fatalf("expected a free slot, %d of %d occupied", len(model), capacity)
					}
					if index < 0 || index >= capacity {
						t.Fatalf("index %d out of range", index)
					}
					if _, dup := model[index]; dup {
						t.Fatalf("index %d handed out twice", index)
					}
					model[index] = v
				},
				"take an occupied slot": func(t *rapid.T) {
					if len(model) == 0 {
						t.Skip("array is empty")
					}
					index := rapid.SampledFrom(occupiedIndices(model)).Draw(t, "index")
					v, ok := arr.Take(index)
					if !ok || v != model[index] {
						t.Fatalf("take %d: got (%d, %v), want (%d, true)", index, v, ok, model[index])
					}
					delete(model, index)
				},
				"take a free slot": func(t *rapid.T) {
					index := rapid.IntRange(0, capacity-1).Draw(t, "index")
					if _, occupied := model[index]; occupied {
						t.Skip("slot is occupied")
					}
					if v, ok := arr.Take(index); ok {
						t.Fatalf("take %d of a free slot returned %d", index, v)
					}
				},
				"take out of range": func(t *rapid.T) {
					index := rapid.SampledFrom([]int{-1, capacity, capacity + 1}).Draw(t, "index")
					if _, ok := arr.Take(index); ok {
						t.Fatalf("take %d out of range succeeded", index)
					}
				},
				"drain": func(t *rapid.T) {
					drained := map[int]uint64{}
					n := arr.Drain(func(index int, v uint64) {
						drained[index] = v
					})
					if n != len(model) || len(drained) != len(model) {
						t.Fatalf("drained %d, want %d", n, len(model))
					}
					for index, v := range model {
						if drained[index] != v {
							t.Fatalf("slot %d drained %d, want %d", index, drained[index], v)
						}
					}
					model = map[int]uint64{}
				},
				"": func(t *rapid.T) {
					if arr.Len() != len(model) {
						t.Fatalf("len %d, want %d", arr.Len(), len(model))
					}
				},
			},
		)
	})
}
