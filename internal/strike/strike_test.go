package strike

import "testing"

func TestAcceptAndDetect(t *testing.T) {
	var r Register
	for seq := uint64(0); seq < 1000; seq++ {
		if r.IsDuplicate(seq) {
			t.Fatalf("fresh sequence %d reported duplicate", seq)
		}
		r.Accept(seq)
		if !r.IsDuplicate(seq) {
			t.Fatalf("accepted sequence %d not detected", seq)
		}
	}
	if r.Count() != 1000 {
		t.Fatalf("count = %d", r.Count())
	}
}

func TestOutOfOrderWithinWindow(t *testing.T) {
	var r Register
	r.Accept(500)
	for _, seq := range []uint64{499, 450, 501, 490} {
		if r.IsDuplicate(seq) {
			t.Fatalf("sequence %d should be fresh", seq)
		}
		r.Accept(seq)
	}
	for _, seq := range []uint64{500, 499, 450, 501, 490} {
		if !r.IsDuplicate(seq) {
			t.Fatalf("sequence %d should be duplicate", seq)
		}
	}
}

func TestTooOldIsDuplicate(t *testing.T) {
	var r Register
	r.Accept(10000)
	if !r.IsDuplicate(10000 - WindowSize) {
		t.Fatal("ancient sequence must be treated as duplicate")
	}
}

func TestWindowSlideClears(t *testing.T) {
	var r Register
	r.Accept(1)
	// Jump far ahead; the ring must not misreport unseen sequences near the
	// new position as duplicates of the stale bits.
	jump := uint64(10 * WindowSize)
	r.Accept(jump)
	if r.IsDuplicate(jump - 1) {
		t.Fatal("unseen sequence near new head reported duplicate")
	}
}
