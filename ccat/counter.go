package ccat

// Only the low 24 bits of a sequence number travel on the wire. The receiver
// rebuilds the full 64-bit value against its highest-seen sequence with a
// signed half-range comparison: a delta in (-2^23, +2^23] picks the nearest
// 64-bit value congruent to the received bits.

const sequenceWireBits = 24

// reconstructSequence expands a truncated 24-bit sequence relative to ref.
func reconstructSequence(ref uint64, partial uint32) uint64 {
	delta := int32((partial-uint32(ref))<<(32-sequenceWireBits)) >> (32 - sequenceWireBits)
	return ref + uint64(int64(delta))
}

// truncateSequence returns the wire form of a sequence number.
func truncateSequence(seq uint64) uint32 {
	return uint32(seq) & (1<<sequenceWireBits - 1)
}
