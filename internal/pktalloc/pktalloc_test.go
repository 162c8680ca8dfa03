package pktalloc

import (
	"bytes"
	"testing"
)

func TestAllocSizes(t *testing.T) {
	a := New()
	for _, n := range []int{1, 63, 64, 65, 127, 128, 1000, 65538, 1 << 20} {
		buf := a.Alloc(n)
		if len(buf) != n {
			t.Fatalf("Alloc(%d) returned len %d", n, len(buf))
		}
	}
	if a.Alloc(0) != nil {
		t.Fatal("Alloc(0) should return nil")
	}
	if a.Alloc(-1) != nil {
		t.Fatal("Alloc(-1) should return nil")
	}
}

func TestZallocZeroes(t *testing.T) {
	a := New()
	buf := a.Alloc(256)
	for i := range buf {
		buf[i] = 0xFF
	}
	a.Free(buf)
	buf = a.Zalloc(256)
	if !bytes.Equal(buf, make([]byte, 256)) {
		t.Fatal("Zalloc returned dirty buffer")
	}
}

func TestGrowPreservesContent(t *testing.T) {
	a := New()
	buf := a.Alloc(10)
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	grown := a.Grow(buf, 500)
	if len(grown) != 500 {
		t.Fatalf("grow len = %d", len(grown))
	}
	for i := 0; i < 10; i++ {
		if grown[i] != byte(i+1) {
			t.Fatalf("content lost at %d", i)
		}
	}
	if got := a.Grow(grown, 100); len(got) != 100 {
		t.Fatalf("shrink len = %d", len(got))
	}
}

func TestFreeReuses(t *testing.T) {
	a := New()
	buf := a.Alloc(100)
	buf[0] = 0xAB
	a.Free(buf)
	again := a.Alloc(100)
	// Same class buffer should come back off the freelist.
	if &again[0] != &buf[0] {
		t.Fatal("expected freelist reuse")
	}
}
