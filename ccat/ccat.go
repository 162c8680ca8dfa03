// Package ccat implements the Cauchy Caterpillar streaming erasure code: a
// short-window FEC scheme for low-latency packet transports. A sender emits
// numbered original packets plus recovery packets computed over a sliding
// window of recent originals; a receiver rebuilds missing originals from the
// recoveries it receives and hands them back through a callback.
//
// The codec is a pure state machine. It has no goroutines, never blocks, and
// a Codec must only be used from one goroutine at a time. Independent Codec
// instances are unrelated and may run in parallel.
package ccat

import (
	"errors"
	"time"

	"github.com/wirefec/ccat/internal/pktalloc"
)

var (
	// ErrInvalidInput reports caller API misuse: empty or oversized packets,
	// out-of-range settings, a missing callback, non-consecutive sequence
	// numbers on the encode path.
	ErrInvalidInput = errors.New("ccat: invalid input")

	// ErrNeedsMoreData reports that EncodeRecovery was called on an empty
	// window.
	ErrNeedsMoreData = errors.New("ccat: needs more data")

	// ErrOutOfMemory reports buffer allocation failure. The instance is
	// fatally errored afterwards.
	ErrOutOfMemory = errors.New("ccat: out of memory")

	// ErrFatal reports an internal invariant violation. Once returned, every
	// subsequent call on the instance fails with the same error.
	ErrFatal = errors.New("ccat: fatal internal error")
)

// Settings configures a Codec at construction.
type Settings struct {
	// WindowMsec is the maximum age of packets retained in the encoder and
	// decoder windows, in [MinWindowMsec, MaxWindowMsec].
	WindowMsec uint32

	// WindowPackets is the maximum number of originals retained in the
	// encoder window, in [1, MaxWindowPackets].
	WindowPackets uint32

	// AppContext is forwarded untouched to OnRecoveredData.
	AppContext any

	// OnRecoveredData is invoked synchronously inside DecodeOriginal or
	// DecodeRecovery for every original the decoder reconstructs. The data
	// slice is only valid for the duration of the call.
	OnRecoveredData func(data []byte, sequence uint64, context any)

	// TimeSource optionally supplies the monotonic clock, in microseconds.
	// Nil selects the runtime monotonic clock.
	TimeSource func() uint64
}

// Original is an application packet entering or leaving the codec. Data must
// hold between 1 and MaxPacketBytes bytes. Originals have no codec-defined
// wire form; the caller transports (sequence, data) itself.
type Original struct {
	SequenceNumber uint64
	Data           []byte
}

// Recovery is a recovery packet. On the encode side all fields are filled in
// by EncodeRecovery and Data remains valid until the next EncodeRecovery
// call. On the decode side SequenceStart may carry only the wire's low 24
// bits; the decoder expands it.
type Recovery struct {
	SequenceStart uint64
	Count         uint8
	Row           uint8
	Data          []byte
}

// Codec is one encoder/decoder pair. Create with NewCodec.
type Codec struct {
	windowUsec uint64
	onRecover  func(data []byte, sequence uint64, context any)
	appCtx     any
	now        func() uint64

	alloc *pktalloc.Allocator
	enc   encoder
	dec   decoder
	stats Stats

	failed error
}

// NewCodec validates settings and constructs a codec instance.
func NewCodec(s Settings) (*Codec, error) {
	if s.WindowMsec < MinWindowMsec || s.WindowMsec > MaxWindowMsec {
		return nil, ErrInvalidInput
	}
	if s.WindowPackets < 1 || s.WindowPackets > MaxWindowPackets {
		return nil, ErrInvalidInput
	}
	if s.OnRecoveredData == nil {
		return nil, ErrInvalidInput
	}
	now := s.TimeSource
	if now == nil {
		start := time.Now()
		now = func() uint64 { return uint64(time.Since(start).Microseconds()) }
	}
	c := &Codec{
		windowUsec: uint64(s.WindowMsec) * 1000,
		onRecover:  s.OnRecoveredData,
		appCtx:     s.AppContext,
		now:        now,
		alloc:      pktalloc.New(),
	}
	c.enc.init(c, s.WindowPackets)
	c.dec.init(c)
	return c, nil
}

// Close releases the codec's buffers. The instance must not be used again.
func (c *Codec) Close() {
	c.enc.reset()
	c.dec.reset()
	c.failed = ErrFatal
}

// EncodeOriginal admits one original packet into the encoder window. The
// sequence number must be exactly one past the previous call's. Data is
// copied; the caller transmits the original itself.
func (c *Codec) EncodeOriginal(o Original) error {
	if c.failed != nil {
		return c.failed
	}
	if len(o.Data) == 0 || len(o.Data) > MaxPacketBytes {
		return ErrInvalidInput
	}
	c.stats.OriginalsSent++
	return c.enc.addOriginal(o.SequenceNumber, o.Data)
}

// EncodeRecovery produces one recovery packet over the current window into
// out. It returns ErrNeedsMoreData when the window is empty. out.Data points
// at codec-owned scratch valid until the next EncodeRecovery call.
func (c *Codec) EncodeRecovery(out *Recovery) error {
	if c.failed != nil {
		return c.failed
	}
	if out == nil {
		return ErrInvalidInput
	}
	err := c.enc.emitRecovery(out)
	if err == nil {
		c.stats.RecoveriesSent++
	}
	return err
}

// DecodeOriginal admits one received original. Duplicate delivery of the
// same sequence number is a no-op; the caller is expected to deduplicate
// (e.g. with a strike register) before handing packets to the codec.
func (c *Codec) DecodeOriginal(o Original) error {
	if c.failed != nil {
		return c.failed
	}
	if len(o.Data) == 0 || len(o.Data) > MaxPacketBytes {
		return ErrInvalidInput
	}
	c.stats.OriginalsReceived++
	return c.dec.onOriginal(o.SequenceNumber, o.Data)
}

// DecodeRecovery admits one received recovery packet. Malformed packets are
// discarded silently; adversarial input never surfaces an error or poisons
// state.
func (c *Codec) DecodeRecovery(r Recovery) error {
	if c.failed != nil {
		return c.failed
	}
	c.stats.RecoveriesReceived++
	return c.dec.onRecovery(r)
}

// Stats returns a snapshot of the codec's counters.
func (c *Codec) Stats() Stats {
	return c.stats
}

// fail poisons the instance and returns the sticky error.
func (c *Codec) fail(err error) error {
	if c.failed == nil {
		c.failed = err
	}
	return c.failed
}
