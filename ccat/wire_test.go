package ccat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecoveryWireRoundTrip(t *testing.T) {
	r := Recovery{
		SequenceStart: 0x123456789A, // only the low 24 bits survive
		Count:         17,
		Row:           42,
		Data:          []byte{1, 2, 3, 4, 5},
	}
	b := AppendRecovery(nil, &r)
	require.Len(t, b, RecoveryHeaderBytes+len(r.Data))

	got, ok := ParseRecovery(b)
	require.True(t, ok)
	require.Equal(t, uint64(0x56789A), got.SequenceStart)
	require.Equal(t, r.Count, got.Count)
	require.Equal(t, r.Row, got.Row)
	require.Equal(t, r.Data, got.Data)
}

func TestRecoveryWireLayout(t *testing.T) {
	r := Recovery{SequenceStart: 0x030201, Count: 7, Row: 9, Data: []byte{0xAA}}
	b := AppendRecovery(nil, &r)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 7, 9, 0xAA}, b)
}

func TestParseRecoveryTooShort(t *testing.T) {
	for n := 0; n <= RecoveryHeaderBytes; n++ {
		_, ok := ParseRecovery(make([]byte, n))
		require.False(t, ok, "n=%d", n)
	}
}

func TestReadLengthPrefix(t *testing.T) {
	require.Equal(t, uint32(1), readLengthPrefix([]byte{1, 0}))
	require.Equal(t, uint32(0x1234), readLengthPrefix([]byte{0x34, 0x12}))
	// zero denotes the 65536-byte maximum
	require.Equal(t, uint32(MaxPacketBytes), readLengthPrefix([]byte{0, 0}))
}
