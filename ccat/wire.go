package ccat

import "encoding/binary"

// Recovery packet wire layout, little-endian:
//
//	bytes 0..2  low 24 bits of the first covered sequence number
//	byte  3     count of covered originals (1..=192)
//	byte  4     recovery row (0..=63)
//	bytes 5..   payload
const RecoveryHeaderBytes = 5

// MaxRecoveryBytes is the largest serialized recovery packet.
const MaxRecoveryBytes = RecoveryHeaderBytes + encodeOverhead + MaxPacketBytes

// AppendRecovery serializes r and appends it to b.
func AppendRecovery(b []byte, r *Recovery) []byte {
	var hdr [RecoveryHeaderBytes]byte
	s := truncateSequence(r.SequenceStart)
	hdr[0] = byte(s)
	hdr[1] = byte(s >> 8)
	hdr[2] = byte(s >> 16)
	hdr[3] = r.Count
	hdr[4] = r.Row
	b = append(b, hdr[:]...)
	return append(b, r.Data...)
}

// ParseRecovery deserializes a recovery packet. The returned Recovery aliases
// b for its payload. SequenceStart carries only the wire's 24 bits; the
// decoder expands it against its highest-seen sequence.
func ParseRecovery(b []byte) (Recovery, bool) {
	if len(b) <= RecoveryHeaderBytes {
		return Recovery{}, false
	}
	var r Recovery
	r.SequenceStart = uint64(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
	r.Count = b[3]
	r.Row = b[4]
	r.Data = b[RecoveryHeaderBytes:]
	return r, true
}

func readLengthPrefix(b []byte) uint32 {
	v := uint32(binary.LittleEndian.Uint16(b))
	if v == 0 {
		// A zero prefix denotes MaxPacketBytes: originals are never empty,
		// and 65536 does not fit in 16 bits.
		return MaxPacketBytes
	}
	return v
}
