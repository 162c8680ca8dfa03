package ccat

import (
	"encoding/binary"
	"math/bits"
	"sort"
)

// decoder tracks a ring of recent originals keyed by sequence number plus a
// set of pending recovery rows, and resolves missing originals by peeling
// single-unknown rows or running Gaussian elimination over row groups that
// share unknowns.
type decoder struct {
	c *Codec

	slots   [decoderWindowSize]decoderSlot
	rows    []*pendingRow // insertion order, oldest first
	highest uint64
	gotAny  bool

	// recovered collects originals solved within one entry point so their
	// callbacks fire in ascending sequence order after state settles.
	recovered []recoveredOriginal
	workQueue []uint64
}

type decoderSlot struct {
	seq     uint64
	present bool
	data    []byte // pooled; exact original length
}

// pendingRow is a received recovery packet minus the contributions of every
// original already known. Column j covers sequence start+j; the unknown
// bitset tracks which covered columns are still mixed into the payload.
type pendingRow struct {
	start    uint64
	count    int
	row      uint8
	payload  []byte // pooled; encodeOverhead + L bytes, mutated in place
	unknown  [matrixColumnCount / 64]uint64
	unknowns int
	arrival  uint64
}

type recoveredOriginal struct {
	seq  uint64
	data []byte
}

func (d *decoder) init(c *Codec) {
	d.c = c
}

func (d *decoder) reset() {
	for i := range d.slots {
		d.c.alloc.Free(d.slots[i].data)
		d.slots[i] = decoderSlot{}
	}
	for _, r := range d.rows {
		d.c.alloc.Free(r.payload)
	}
	d.rows = nil
}

// lowBound returns the oldest sequence number still inside the slot window.
func (d *decoder) lowBound() uint64 {
	if !d.gotAny || d.highest < decoderWindowSize {
		return 0
	}
	return d.highest - decoderWindowSize + 1
}

func (d *decoder) slot(seq uint64) *decoderSlot {
	return &d.slots[seq%decoderWindowSize]
}

// known reports whether the original for seq is held, including data kept in
// a slot that has already slid past the nominal window but has not been
// reused yet.
func (d *decoder) known(seq uint64) ([]byte, bool) {
	s := d.slot(seq)
	if s.present && s.seq == seq {
		return s.data, true
	}
	return nil, false
}

func (d *decoder) store(seq uint64, data []byte) ([]byte, error) {
	s := d.slot(seq)
	if s.present {
		d.c.alloc.Free(s.data)
	}
	buf := d.c.alloc.Alloc(len(data))
	if buf == nil {
		return nil, d.c.fail(ErrOutOfMemory)
	}
	copy(buf, data)
	*s = decoderSlot{seq: seq, present: true, data: buf}
	return buf, nil
}

func (d *decoder) onOriginal(seq uint64, data []byte) error {
	if !d.gotAny || seq > d.highest {
		d.highest = seq
		d.gotAny = true
	}
	now := d.c.now()
	d.expireRows(now)

	if seq < d.lowBound() {
		// Too old to matter; the application already has it.
		return nil
	}
	if _, ok := d.known(seq); ok {
		return nil
	}
	if _, err := d.store(seq, data); err != nil {
		return err
	}
	if err := d.propagate(seq); err != nil {
		return err
	}
	return d.deliverRecovered()
}

func (d *decoder) onRecovery(rec Recovery) error {
	count := int(rec.Count)
	if count < 1 || count > matrixColumnCount ||
		rec.Row >= matrixRowCount ||
		len(rec.Data) <= encodeOverhead ||
		len(rec.Data) > encodeOverhead+MaxPacketBytes {
		d.c.stats.RecoveriesDiscarded++
		return nil
	}

	start := reconstructSequence(d.highest, truncateSequence(rec.SequenceStart))
	if !d.gotAny {
		start = rec.SequenceStart & (1<<sequenceWireBits - 1)
	}
	end := start + uint64(count)
	if !d.gotAny || end-1 > d.highest {
		d.highest = end - 1
		d.gotAny = true
	}

	now := d.c.now()
	d.expireRows(now)
	if end <= d.lowBound() {
		d.c.stats.RecoveriesDiscarded++
		return nil
	}

	row := &pendingRow{
		start:   start,
		count:   count,
		row:     rec.Row,
		arrival: now,
	}
	row.payload = d.c.alloc.Alloc(len(rec.Data))
	if row.payload == nil {
		return d.c.fail(ErrOutOfMemory)
	}
	copy(row.payload, rec.Data)
	for j := 0; j < count; j++ {
		row.unknown[j>>6] |= 1 << (j & 63)
	}
	row.unknowns = count

	// Subtract every already-known covered original. Columns that slid below
	// the window and were never received cannot be resolved, which makes the
	// whole row useless; covered columns whose slot still holds data are
	// clamped into the known range instead of rejecting the row.
	lowBound := d.lowBound()
	for j := 0; j < count; j++ {
		seq := start + uint64(j)
		if data, ok := d.known(seq); ok {
			d.subtractKnown(row, j, data)
		} else if seq < lowBound {
			d.c.alloc.Free(row.payload)
			d.c.stats.RecoveriesDiscarded++
			return nil
		}
	}

	switch {
	case row.unknowns == 0:
		// Everything covered is already known.
		d.c.alloc.Free(row.payload)
		return nil
	case row.unknowns == 1:
		if seq, ok := d.peel(row); ok {
			d.c.alloc.Free(row.payload)
			if err := d.propagate(seq); err != nil {
				return err
			}
		} else {
			d.c.alloc.Free(row.payload)
			d.c.stats.RecoveriesDiscarded++
		}
		return d.deliverRecovered()
	}

	if len(d.rows) >= maxRecoveryRows {
		d.c.alloc.Free(d.rows[0].payload)
		d.rows = d.rows[1:]
		d.c.stats.PendingRowsEvicted++
	}
	d.rows = append(d.rows, row)

	if err := d.trySolve(); err != nil {
		return err
	}
	return d.deliverRecovered()
}

// subtractKnown removes column j's contribution from the row and clears its
// unknown bit. The column value is the 16-bit length prefix followed by the
// original's data, zero-padded to the payload length.
func (d *decoder) subtractKnown(r *pendingRow, j int, data []byte) {
	coef := matrixElement(r.row, uint8(j))
	var prefix [encodeOverhead]byte
	binary.LittleEndian.PutUint16(prefix[:], uint16(len(data)))
	mulAddSlice(r.payload[:encodeOverhead], prefix[:], coef)
	mulAddSlice(r.payload[encodeOverhead:], data, coef)
	r.unknown[j>>6] &^= 1 << (j & 63)
	r.unknowns--
}

// peel resolves a row with exactly one unknown: divide the residual payload
// by the column coefficient, split off the length prefix and store the
// original. Returns the solved sequence number.
func (d *decoder) peel(r *pendingRow) (uint64, bool) {
	j, ok := r.lowestUnknown()
	if !ok {
		return 0, false
	}
	seq := r.start + uint64(j)
	coef := matrixElement(r.row, uint8(j))
	mulSlice(r.payload, gfInv(coef))
	n := int(readLengthPrefix(r.payload))
	if n > len(r.payload)-encodeOverhead {
		return 0, false
	}
	buf, err := d.store(seq, r.payload[encodeOverhead:encodeOverhead+n])
	if err != nil {
		return 0, false
	}
	d.c.stats.Peels++
	d.recovered = append(d.recovered, recoveredOriginal{seq: seq, data: buf})
	return seq, true
}

// propagate cascades newly known originals through the pending set: every
// covering row has the contribution subtracted, rows that empty out are
// discarded, and rows that drop to one unknown peel, feeding the cascade.
func (d *decoder) propagate(seq uint64) error {
	d.workQueue = append(d.workQueue[:0], seq)
	for qi := 0; qi < len(d.workQueue); qi++ {
		s := d.workQueue[qi]
		data, ok := d.known(s)
		if !ok {
			return d.c.fail(ErrFatal)
		}
		i := 0
		for i < len(d.rows) {
			r := d.rows[i]
			j := int(s - r.start)
			if s < r.start || j >= r.count || !r.isUnknown(j) {
				i++
				continue
			}
			d.subtractKnown(r, j, data)
			if r.unknowns > 1 {
				i++
				continue
			}
			if r.unknowns == 1 {
				if solved, ok := d.peel(r); ok {
					d.workQueue = append(d.workQueue, solved)
				}
			}
			d.dropRow(i)
		}
	}
	return nil
}

func (d *decoder) dropRow(i int) {
	d.c.alloc.Free(d.rows[i].payload)
	d.rows = append(d.rows[:i], d.rows[i+1:]...)
}

// expireRows drops pending rows that aged past the window, ended below the
// slot ring, or reference an unknown column that can no longer be resolved.
func (d *decoder) expireRows(now uint64) {
	lowBound := d.lowBound()
	i := 0
	for i < len(d.rows) {
		r := d.rows[i]
		expired := now-r.arrival > d.c.windowUsec ||
			r.start+uint64(r.count) <= lowBound
		if !expired {
			if j, ok := r.lowestUnknown(); ok && r.start+uint64(j) < lowBound {
				expired = true
			}
		}
		if expired {
			d.dropRow(i)
			continue
		}
		i++
	}
}

func (d *decoder) deliverRecovered() error {
	if len(d.recovered) == 0 {
		return nil
	}
	sort.Slice(d.recovered, func(a, b int) bool {
		return d.recovered[a].seq < d.recovered[b].seq
	})
	for _, rec := range d.recovered {
		d.c.stats.PacketsRecovered++
		d.c.onRecover(rec.data, rec.seq, d.c.appCtx)
	}
	d.recovered = d.recovered[:0]
	return nil
}

func (r *pendingRow) isUnknown(j int) bool {
	return r.unknown[j>>6]&(1<<(j&63)) != 0
}

func (r *pendingRow) lowestUnknown() (int, bool) {
	for w, word := range r.unknown {
		if word != 0 {
			return w<<6 + bits.TrailingZeros64(word), true
		}
	}
	return 0, false
}
