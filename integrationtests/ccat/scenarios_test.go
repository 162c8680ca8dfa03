package ccat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wirefec/ccat/ccat"
	"github.com/wirefec/ccat/internal/harness"
)

// End-to-end scenarios: window 100ms, full packet window, one recovery per
// three originals unless stated otherwise.

func newPairCodecs(t *testing.T, now *uint64, got *[]uint64) (*ccat.Codec, *ccat.Codec) {
	t.Helper()
	sender, err := ccat.NewCodec(ccat.Settings{
		WindowMsec:      100,
		WindowPackets:   ccat.MaxWindowPackets,
		OnRecoveredData: func([]byte, uint64, any) {},
		TimeSource:      fakeClock(now),
	})
	require.NoError(t, err)
	t.Cleanup(sender.Close)

	receiver, err := ccat.NewCodec(ccat.Settings{
		WindowMsec:    100,
		WindowPackets: ccat.MaxWindowPackets,
		OnRecoveredData: func(data []byte, seq uint64, _ any) {
			require.True(t, harness.CheckPacket(seq, data), "corrupt recovery of %d", seq)
			*got = append(*got, seq)
		},
		TimeSource: fakeClock(now),
	})
	require.NoError(t, err)
	t.Cleanup(receiver.Close)
	return sender, receiver
}

func fakeClock(now *uint64) func() uint64 {
	if now == nil {
		return nil
	}
	return func() uint64 { return *now }
}

func sendOriginal(t *testing.T, sender, receiver *ccat.Codec, seq uint64, size int, deliver bool) {
	t.Helper()
	buf := make([]byte, size)
	harness.SetPacket(seq, buf)
	o := ccat.Original{SequenceNumber: seq, Data: buf}
	require.NoError(t, sender.EncodeOriginal(o))
	if deliver {
		require.NoError(t, receiver.DecodeOriginal(o))
	}
}

// S1: no loss. Every original arrives directly and the callback stays quiet.
func TestScenarioNoLoss(t *testing.T) {
	var got []uint64
	sender, receiver := newPairCodecs(t, nil, &got)

	sizes := []int{1, 37, 1000}
	for seq := uint64(0); seq < 1000; seq++ {
		sendOriginal(t, sender, receiver, seq, sizes[seq%3], true)
		if seq%3 == 2 {
			var rec ccat.Recovery
			require.NoError(t, sender.EncodeRecovery(&rec))
			require.NoError(t, receiver.DecodeRecovery(rec))
		}
	}
	require.Empty(t, got)
	require.Equal(t, uint64(1000), receiver.Stats().OriginalsReceived)
}

// S2: 20% uniform loss on both originals and recoveries, one recovery per
// three originals, averaged over independent seeds.
func TestScenarioUniformLoss(t *testing.T) {
	if testing.Short() {
		t.Skip("long loss sweep")
	}
	const (
		runs  = 100
		steps = 10000
	)
	var eloss harness.StatsCollector
	for run := uint64(0); run < runs; run++ {
		pair, err := harness.NewPair(harness.Config{
			WindowMsec:  100,
			LossRate:    0.2,
			FECInterval: 3,
			MaxBytes:    1000,
		}, run, 0)
		require.NoError(t, err)
		for i := 0; i < steps; i++ {
			require.NoError(t, pair.Step())
		}
		eloss.Update(pair.EffectiveLoss())
		pair.Close()
	}
	require.Less(t, eloss.Average(), 0.01,
		"effective loss min=%.4f avg=%.4f max=%.4f", eloss.Min, eloss.Average(), eloss.Max)
}

// S3: one lost original surrounded by intact traffic is recovered with the
// exact bytes that were sent.
func TestScenarioSingleLoss(t *testing.T) {
	var got []uint64
	sender, receiver := newPairCodecs(t, nil, &got)

	for seq := uint64(0); seq <= 10; seq++ {
		sendOriginal(t, sender, receiver, seq, 100, seq != 5)
		if seq == 8 {
			var rec ccat.Recovery
			require.NoError(t, sender.EncodeRecovery(&rec))
			require.NoError(t, receiver.DecodeRecovery(rec))
		}
	}
	require.Equal(t, []uint64{5}, got)
}

// S4: two losses and only one recovery: nothing is delivered and nothing is
// duplicated.
func TestScenarioUnderdetermined(t *testing.T) {
	var got []uint64
	sender, receiver := newPairCodecs(t, nil, &got)

	for seq := uint64(0); seq <= 10; seq++ {
		sendOriginal(t, sender, receiver, seq, 100, seq != 5 && seq != 7)
	}
	var rec ccat.Recovery
	require.NoError(t, sender.EncodeRecovery(&rec))
	require.NoError(t, receiver.DecodeRecovery(rec))
	require.Empty(t, got)
}

// S5: two losses, two independent recoveries over the same span; both come
// back in ascending order.
func TestScenarioTwoRecoveries(t *testing.T) {
	var got []uint64
	sender, receiver := newPairCodecs(t, nil, &got)

	for seq := uint64(0); seq <= 10; seq++ {
		sendOriginal(t, sender, receiver, seq, 100, seq != 5 && seq != 7)
	}
	var rec1, rec2 ccat.Recovery
	require.NoError(t, sender.EncodeRecovery(&rec1))
	// rec1.Data is encoder scratch; keep a copy past the next emission.
	rec1.Data = append([]byte(nil), rec1.Data...)
	require.NoError(t, sender.EncodeRecovery(&rec2))
	require.NotEqual(t, rec1.Row, rec2.Row)
	require.NoError(t, receiver.DecodeRecovery(rec1))
	require.NoError(t, receiver.DecodeRecovery(rec2))
	require.Equal(t, []uint64{5, 7}, got)
}

// S6: a loss older than the time window is never resurrected.
func TestScenarioWindowExpiration(t *testing.T) {
	now := uint64(0)
	var got []uint64
	sender, receiver := newPairCodecs(t, &now, &got)

	for seq := uint64(0); seq <= 10; seq++ {
		sendOriginal(t, sender, receiver, seq, 100, seq != 5)
	}
	now += 200 * 1000 // 200ms > WindowMsec
	for seq := uint64(11); seq <= 20; seq++ {
		sendOriginal(t, sender, receiver, seq, 100, true)
	}
	var rec ccat.Recovery
	require.NoError(t, sender.EncodeRecovery(&rec))
	require.Equal(t, uint64(11), rec.SequenceStart)
	require.NoError(t, receiver.DecodeRecovery(rec))
	require.Empty(t, got)
}

// Property: across loss patterns, no sequence is ever delivered twice by
// either path, and delivered bytes always verify. A multi-pair soak in the
// shape of the original tester.
func TestSoakParallelPairs(t *testing.T) {
	if testing.Short() {
		t.Skip("long soak")
	}
	const pairs = 20
	for i := 0; i < pairs; i++ {
		pair, err := harness.NewPair(harness.Config{
			WindowMsec:  100,
			LossRate:    0.1,
			FECInterval: 3,
			MaxBytes:    500,
		}, uint64(i), 7)
		require.NoError(t, err)
		for s := 0; s < 3000; s++ {
			require.NoError(t, pair.Step())
		}
		require.NoError(t, pair.Err)
		pair.Close()
	}
}
