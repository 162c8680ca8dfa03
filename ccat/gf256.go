package ccat

import "encoding/binary"

// GF(256) arithmetic using log/exp tables with primitive polynomial 0x11d.
// A full 256x256 product table is also built so the bulk kernels are one
// lookup per byte instead of two log lookups and an add.

var (
	gfExp [512]byte
	gfLog [256]byte
	gfMul [256][256]byte
)

func init() {
	// generator = 0x02, primitive polynomial = 0x11d
	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[byte(x)] = byte(i)
		x <<= 1
		if (x & 0x100) != 0 { // carry out from bit 8
			x ^= 0x11d // reduce by 0x11d
		}
	}
	for i := 255; i < 512; i++ {
		gfExp[i] = gfExp[i-255]
	}
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b++ {
			gfMul[a][b] = gfExp[int(gfLog[a])+int(gfLog[b])]
		}
	}
}

func gfMulByte(a, b byte) byte {
	return gfMul[a][b]
}

func gfInv(a byte) byte {
	if a == 0 {
		return 0
	}
	return gfExp[255-int(gfLog[a])]
}

func gfDiv(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+255-int(gfLog[b])]
}

// xorSlice xors src into dst over the overlapping prefix, eight bytes at a
// time with a scalar tail.
func xorSlice(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	i := 0
	for ; i+8 <= n; i += 8 {
		v := binary.LittleEndian.Uint64(dst[i:]) ^ binary.LittleEndian.Uint64(src[i:])
		binary.LittleEndian.PutUint64(dst[i:], v)
	}
	for ; i < n; i++ {
		dst[i] ^= src[i]
	}
}

// mulAddSlice accumulates coef*src into dst: dst[i] ^= coef*src[i] over the
// overlapping prefix. coef==0 is a no-op and coef==1 is a pure XOR.
func mulAddSlice(dst, src []byte, coef byte) {
	if coef == 0 {
		return
	}
	if coef == 1 {
		xorSlice(dst, src)
		return
	}
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	tab := &gfMul[coef]
	for i := 0; i < n; i++ {
		dst[i] ^= tab[src[i]]
	}
}

// mulSlice scales dst in place by coef.
func mulSlice(dst []byte, coef byte) {
	if coef == 1 {
		return
	}
	if coef == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	tab := &gfMul[coef]
	for i, v := range dst {
		dst[i] = tab[v]
	}
}
