package harness

import "testing"

func TestSetPacketDeterministic(t *testing.T) {
	a := make([]byte, 777)
	b := make([]byte, 777)
	SetPacket(42, a)
	SetPacket(42, b)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("mismatch at %d", i)
		}
	}
	if !CheckPacket(42, a) {
		t.Fatal("CheckPacket rejected its own content")
	}
	SetPacket(43, b)
	if CheckPacket(42, b) {
		t.Fatal("CheckPacket accepted wrong sequence")
	}
}

func TestSetPacketSmallSizes(t *testing.T) {
	for n := 1; n <= 9; n++ {
		buf := make([]byte, n)
		SetPacket(7, buf)
		if !CheckPacket(7, buf) {
			t.Fatalf("size %d failed", n)
		}
	}
}

func TestPairNoLoss(t *testing.T) {
	p, err := NewPair(Config{WindowMsec: 100, LossRate: 0, FECInterval: 3, MaxBytes: 500}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	for i := 0; i < 2000; i++ {
		if err := p.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if p.Delivered != p.Sent() {
		t.Fatalf("delivered %d of %d with no loss", p.Delivered, p.Sent())
	}
	if p.Recovered != 0 {
		t.Fatalf("unexpected recoveries without loss: %d", p.Recovered)
	}
}

func TestPairTwentyPercentLoss(t *testing.T) {
	if testing.Short() {
		t.Skip("long loss soak")
	}
	var eloss StatsCollector
	for run := uint64(0); run < 10; run++ {
		p, err := NewPair(Config{WindowMsec: 100, LossRate: 0.2, FECInterval: 3, MaxBytes: 1000}, run, 99)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 10000; i++ {
			if err := p.Step(); err != nil {
				t.Fatal(err)
			}
		}
		eloss.Update(p.EffectiveLoss())
		p.Close()
	}
	// 20% uniform loss with one recovery per three originals should leave
	// well under 1% effective loss on average.
	if avg := eloss.Average(); avg >= 0.01 {
		t.Fatalf("effective loss %.4f too high", avg)
	}
}

func TestStatsCollector(t *testing.T) {
	var s StatsCollector
	for _, v := range []float64{3, 1, 2} {
		s.Update(v)
	}
	if s.Min != 1 || s.Max != 3 || s.Average() != 2 {
		t.Fatalf("min=%v max=%v avg=%v", s.Min, s.Max, s.Average())
	}
}
