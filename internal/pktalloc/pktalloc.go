// Package pktalloc provides pooled, variable-length byte buffers for codec
// windows and recovery scratch. An Allocator belongs to a single codec
// instance and is not safe for concurrent use.
package pktalloc

import "math/bits"

const (
	// minClassBytes keeps tiny buffers out of their own classes.
	minClassBytes = 64

	// maxFreePerClass bounds how many buffers a class retains.
	maxFreePerClass = 32

	numClasses = 12
)

// Allocator hands out byte buffers from power-of-two size-classed freelists.
// Buffers above the largest class fall through to the runtime allocator.
type Allocator struct {
	free [numClasses][][]byte
}

func New() *Allocator {
	return &Allocator{}
}

func classFor(n int) (int, int) {
	if n <= minClassBytes {
		return 0, minClassBytes
	}
	c := bits.Len(uint(n-1)) - bits.Len(uint(minClassBytes)) + 1
	if c >= numClasses {
		return -1, n
	}
	return c, minClassBytes << c
}

// Alloc returns a buffer of length n. Contents are not zeroed.
func (a *Allocator) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	c, rounded := classFor(n)
	if c < 0 {
		return make([]byte, n)
	}
	if l := a.free[c]; len(l) > 0 {
		buf := l[len(l)-1]
		a.free[c] = l[:len(l)-1]
		return buf[:n]
	}
	return make([]byte, rounded)[:n]
}

// Zalloc returns a zeroed buffer of length n.
func (a *Allocator) Zalloc(n int) []byte {
	buf := a.Alloc(n)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Grow extends buf to length n, preserving its contents. The extension is
// not zeroed. Growing within capacity is free; otherwise the old buffer is
// recycled and a larger one returned.
func (a *Allocator) Grow(buf []byte, n int) []byte {
	if n <= len(buf) {
		return buf[:n]
	}
	if n <= cap(buf) {
		return buf[:n]
	}
	next := a.Alloc(n)
	copy(next, buf)
	a.Free(buf)
	return next
}

// Free recycles buf. Only buffers whose capacity matches a size class are
// retained; the rest are left to the garbage collector.
func (a *Allocator) Free(buf []byte) {
	if buf == nil {
		return
	}
	c := cap(buf)
	if c < minClassBytes || c&(c-1) != 0 {
		return
	}
	cls := bits.Len(uint(c)) - bits.Len(uint(minClassBytes))
	if cls < 0 || cls >= numClasses {
		return
	}
	if len(a.free[cls]) >= maxFreePerClass {
		return
	}
	a.free[cls] = append(a.free[cls], buf[:0:c])
}
