package slots

import "math"

// Freelist head layout, one uint64:
// [32-bit tag][32-bit index]
// The index must be able to hold the sentinel (== capacity), so the
// largest capacity is one less than the largest uint32.
const (
	taggedIndexBits = 32
	taggedIndexMask = (uint64(1) << taggedIndexBits) - 1

	MaxSlotArrayCapacity = math.MaxUint32 - 1
)

func packTaggedIndex(index, tag uint32) uint64 {
	return uint64(tag)<<taggedIndexBits | uint64(index)
}

func unpackTaggedIndex(word uint64) (index, tag uint32) {
	index = uint32(word & taggedIndexMask)
	tag = uint32(word >> taggedIndexBits)
	return
}
