// Package harness drives sender/receiver codec pairs over simulated loss.
// Packet contents are generated from a PCG stream seeded by (sequence,
// bytes), so any run can verify recovered bytes without retaining the
// originals it dropped.
package harness

import (
	"encoding/binary"
	"fmt"

	"github.com/wirefec/ccat/ccat"
	"github.com/wirefec/ccat/internal/dropper"
	"github.com/wirefec/ccat/internal/pcg"
	"github.com/wirefec/ccat/internal/strike"
)

// SetPacket fills buf deterministically from its sequence number and length.
// The first four bytes carry the length, the rest is PCG output.
func SetPacket(sequence uint64, buf []byte) {
	var prng pcg.Rand
	prng.Seed(sequence, uint64(len(buf)))

	b := buf
	if len(b) >= 4 {
		binary.LittleEndian.PutUint32(b, uint32(len(buf)))
		b = b[4:]
	}
	for len(b) >= 4 {
		binary.LittleEndian.PutUint32(b, prng.Next())
		b = b[4:]
	}
	if len(b) > 0 {
		x := prng.Next()
		for i := range b {
			b[i] = byte(x)
			x >>= 8
		}
	}
}

// CheckPacket reports whether data matches SetPacket output for sequence.
func CheckPacket(sequence uint64, data []byte) bool {
	expected := make([]byte, len(data))
	SetPacket(sequence, expected)
	for i := range data {
		if data[i] != expected[i] {
			return false
		}
	}
	return true
}

// Config parameterizes one sender/receiver pair.
type Config struct {
	WindowMsec   uint32
	LossRate     float64
	FECInterval  int // one recovery per this many originals
	MaxBytes     int // original sizes are 1..MaxBytes
	RecoveryLoss float64
}

// Pair is one independent sender/receiver simulation.
type Pair struct {
	cfg      Config
	sender   *ccat.Codec
	receiver *ccat.Codec

	prng       pcg.Rand
	origDrop   *dropper.Bernoulli
	recDrop    *dropper.Bernoulli
	strikes    strike.Register
	sequence   uint64
	fecCounter int

	// Delivered counts originals that reached the application either
	// directly or through recovery.
	Delivered uint64
	Recovered uint64
	Err       error
}

// NewPair builds a pair. runIndex and seed select independent streams.
func NewPair(cfg Config, runIndex, seed uint64) (*Pair, error) {
	if cfg.FECInterval <= 0 {
		cfg.FECInterval = 3
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1000
	}
	if cfg.RecoveryLoss == 0 {
		cfg.RecoveryLoss = cfg.LossRate
	}
	p := &Pair{cfg: cfg}
	p.prng.Seed(runIndex, seed)
	var lossRng pcg.Rand
	lossRng.Seed(runIndex^0x9e3779b97f4a7c15, seed)
	p.origDrop = dropper.New(cfg.LossRate, &lossRng)
	p.recDrop = dropper.New(cfg.RecoveryLoss, &lossRng)

	var err error
	p.sender, err = ccat.NewCodec(ccat.Settings{
		WindowMsec:      cfg.WindowMsec,
		WindowPackets:   ccat.MaxWindowPackets,
		OnRecoveredData: func([]byte, uint64, any) {},
	})
	if err != nil {
		return nil, fmt.Errorf("harness: sender: %w", err)
	}
	p.receiver, err = ccat.NewCodec(ccat.Settings{
		WindowMsec:      cfg.WindowMsec,
		WindowPackets:   ccat.MaxWindowPackets,
		OnRecoveredData: p.onRecovered,
	})
	if err != nil {
		return nil, fmt.Errorf("harness: receiver: %w", err)
	}
	return p, nil
}

func (p *Pair) onRecovered(data []byte, sequence uint64, _ any) {
	if p.strikes.IsDuplicate(sequence) {
		p.Err = fmt.Errorf("harness: duplicate recovered sequence %d", sequence)
		return
	}
	if !CheckPacket(sequence, data) {
		p.Err = fmt.Errorf("harness: corrupted recovery of sequence %d", sequence)
		return
	}
	p.strikes.Accept(sequence)
	p.Delivered++
	p.Recovered++
}

// Step sends one original through the lossy channel and, every FECInterval
// originals, one recovery packet.
func (p *Pair) Step() error {
	bytes := int(p.prng.Next())%p.cfg.MaxBytes + 1
	buf := make([]byte, bytes)
	seq := p.sequence
	p.sequence++
	SetPacket(seq, buf)

	original := ccat.Original{SequenceNumber: seq, Data: buf}
	if err := p.sender.EncodeOriginal(original); err != nil {
		return fmt.Errorf("harness: encode original %d: %w", seq, err)
	}

	if !p.origDrop.Drop() {
		if p.strikes.IsDuplicate(seq) {
			return fmt.Errorf("harness: duplicate direct sequence %d", seq)
		}
		p.strikes.Accept(seq)
		p.Delivered++
		if err := p.receiver.DecodeOriginal(original); err != nil {
			return fmt.Errorf("harness: decode original %d: %w", seq, err)
		}
	}

	if p.fecCounter++; p.fecCounter >= p.cfg.FECInterval {
		p.fecCounter = 0
		var rec ccat.Recovery
		if err := p.sender.EncodeRecovery(&rec); err != nil {
			return fmt.Errorf("harness: encode recovery: %w", err)
		}
		if !p.recDrop.Drop() {
			if err := p.receiver.DecodeRecovery(rec); err != nil {
				return fmt.Errorf("harness: decode recovery: %w", err)
			}
		}
	}
	return p.Err
}

// Sent returns how many originals the pair has produced.
func (p *Pair) Sent() uint64 { return p.sequence }

// EffectiveLoss is the fraction of sent originals that never reached the
// application by either path.
func (p *Pair) EffectiveLoss() float64 {
	if p.sequence == 0 {
		return 0
	}
	return 1 - float64(p.Delivered)/float64(p.sequence)
}

// Close releases both codecs.
func (p *Pair) Close() {
	p.sender.Close()
	p.receiver.Close()
}

// StatsCollector accumulates min/avg/max of float64 samples.
type StatsCollector struct {
	Min, Max, Sum float64
	Count         int
}

func (s *StatsCollector) Update(v float64) {
	if s.Count == 0 || v < s.Min {
		s.Min = v
	}
	if s.Count == 0 || v > s.Max {
		s.Max = v
	}
	s.Sum += v
	s.Count++
}

func (s *StatsCollector) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}
