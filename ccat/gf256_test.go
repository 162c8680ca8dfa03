package ccat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGF256FieldProperties(t *testing.T) {
	// exp/log round trip
	for a := 1; a < 256; a++ {
		require.Equal(t, byte(a), gfExp[gfLog[a]])
	}
	// multiplicative inverse
	for a := 1; a < 256; a++ {
		require.Equal(t, byte(1), gfMulByte(byte(a), gfInv(byte(a))), "a=%d", a)
	}
	// division is multiplication by the inverse
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b++ {
			require.Equal(t, gfMulByte(byte(a), gfInv(byte(b))), gfDiv(byte(a), byte(b)))
		}
	}
	// zero annihilates
	for a := 0; a < 256; a++ {
		require.Equal(t, byte(0), gfMulByte(byte(a), 0))
		require.Equal(t, byte(0), gfMulByte(0, byte(a)))
	}
}

func TestGF256MulCommutes(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := a; b < 256; b++ {
			require.Equal(t, gfMulByte(byte(a), byte(b)), gfMulByte(byte(b), byte(a)))
		}
	}
}

func refMulAdd(dst, src []byte, coef byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] ^= gfMulByte(coef, src[i])
	}
}

func TestMulAddSliceMatchesReference(t *testing.T) {
	src := make([]byte, 131) // odd length exercises the scalar tail
	for i := range src {
		src[i] = byte(i*7 + 3)
	}
	for _, coef := range []byte{0, 1, 2, 0x53, 0xff} {
		got := make([]byte, len(src))
		want := make([]byte, len(src))
		for i := range got {
			got[i] = byte(i * 11)
			want[i] = got[i]
		}
		mulAddSlice(got, src, coef)
		refMulAdd(want, src, coef)
		require.Equal(t, want, got, "coef=%#x", coef)
	}
}

func TestMulAddSliceUnequalLengths(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := make([]byte, 8)
	mulAddSlice(dst, src, 1)
	require.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, dst)

	short := make([]byte, 2)
	mulAddSlice(short, src, 1)
	require.Equal(t, []byte{1, 2}, short)
}

func TestMulSlice(t *testing.T) {
	buf := []byte{0, 1, 2, 0x80, 0xff}
	orig := append([]byte(nil), buf...)
	mulSlice(buf, 0x1d)
	for i := range buf {
		require.Equal(t, gfMulByte(orig[i], 0x1d), buf[i])
	}
	mulSlice(buf, gfInv(0x1d))
	require.Equal(t, orig, buf)
}

func BenchmarkMulAddSlice(b *testing.B) {
	dst := make([]byte, 1500)
	src := make([]byte, 1500)
	for i := range src {
		src[i] = byte(i)
	}
	b.SetBytes(int64(len(src)))
	for i := 0; i < b.N; i++ {
		mulAddSlice(dst, src, 0x53)
	}
}

func BenchmarkXorSlice(b *testing.B) {
	dst := make([]byte, 1500)
	src := make([]byte, 1500)
	for i := range src {
		src[i] = byte(i)
	}
	b.SetBytes(int64(len(src)))
	for i := 0; i < b.N; i++ {
		mulAddSlice(dst, src, 1)
	}
}
