package baseline

import (
	"bytes"
	"testing"
)

func makeBlock(k, l int) [][]byte {
	src := make([][]byte, k)
	for i := range src {
		src[i] = make([]byte, l)
		for j := range src[i] {
			src[i][j] = byte(i*31 + j*7 + 1)
		}
	}
	return src
}

func testBlockCodec(t *testing.T, c BlockCodec, n, k, l, drops int) {
	t.Helper()
	src := makeBlock(k, l)
	symbols, err := c.Encode(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != n {
		t.Fatalf("%s: got %d symbols, want %d", c.Name(), len(symbols), n)
	}

	// Drop some symbols, keeping a mix of sources and repairs.
	recv := make([][]byte, n)
	dropped := 0
	for i := range symbols {
		if dropped < drops && i%3 == 1 {
			dropped++
			continue
		}
		recv[i] = symbols[i]
	}
	out, ok := c.Decode(recv)
	if !ok {
		t.Fatalf("%s: decode failed with %d losses", c.Name(), dropped)
	}
	for i := range src {
		if !bytes.Equal(out[i], src[i]) {
			t.Fatalf("%s: source %d corrupted", c.Name(), i)
		}
	}
}

func TestRSRoundTrip(t *testing.T) {
	rs, err := NewRS(12, 8)
	if err != nil {
		t.Fatal(err)
	}
	// RS is MDS: any k of n suffice.
	testBlockCodec(t, rs, 12, 8, 256, 4)
}

func TestRaptorQRoundTrip(t *testing.T) {
	rq, err := NewRaptorQ(16, 12, 128)
	if err != nil {
		t.Fatal(err)
	}
	// RaptorQ needs a couple of symbols of slack to decode with certainty.
	testBlockCodec(t, rq, 16, 12, 128, 2)
}

func TestRSTooManyLosses(t *testing.T) {
	rs, err := NewRS(6, 4)
	if err != nil {
		t.Fatal(err)
	}
	src := makeBlock(4, 64)
	symbols, err := rs.Encode(src)
	if err != nil {
		t.Fatal(err)
	}
	recv := make([][]byte, 6)
	recv[0] = symbols[0]
	recv[5] = symbols[5]
	if _, ok := rs.Decode(recv); ok {
		t.Fatal("decode should fail with only 2 of 4 required symbols")
	}
}
