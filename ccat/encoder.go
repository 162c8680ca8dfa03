package ccat

import "encoding/binary"

// encoder retains a ring of up to WindowPackets recent originals and produces
// recovery packets that are GF(256) linear combinations of the window.
type encoder struct {
	c          *Codec
	maxPackets int

	entries [matrixColumnCount]encEntry
	start   int // ring index of the oldest retained original
	count   int

	columnBase uint64 // sequence number of the oldest retained original
	nextSeq    uint64
	started    bool

	nextRow uint8

	scratch []byte // recovery payload, reused across emissions
}

type encEntry struct {
	data  []byte // pooled copy of the original
	tUsec uint64
}

func (e *encoder) init(c *Codec, windowPackets uint32) {
	e.c = c
	e.maxPackets = int(windowPackets)
}

func (e *encoder) reset() {
	for i := 0; i < e.count; i++ {
		idx := (e.start + i) % matrixColumnCount
		e.c.alloc.Free(e.entries[idx].data)
		e.entries[idx] = encEntry{}
	}
	e.count = 0
	e.c.alloc.Free(e.scratch)
	e.scratch = nil
}

// addOriginal copies one original into the window, retiring the oldest slots
// until both the count bound and the age bound hold.
func (e *encoder) addOriginal(seq uint64, data []byte) error {
	if !e.started {
		e.columnBase = seq
		e.nextSeq = seq
		e.started = true
	} else if seq != e.nextSeq {
		// The window is a contiguous span; the application assigns sequence
		// numbers from a monotonic counter.
		return ErrInvalidInput
	}

	now := e.c.now()
	for e.count >= e.maxPackets {
		e.retireOldest()
	}
	e.retireExpired(now)

	buf := e.c.alloc.Alloc(len(data))
	if buf == nil {
		return e.c.fail(ErrOutOfMemory)
	}
	copy(buf, data)
	e.entries[(e.start+e.count)%matrixColumnCount] = encEntry{data: buf, tUsec: now}
	e.count++
	e.nextSeq++
	return nil
}

// emitRecovery writes one recovery packet over the current window into out.
// The covered span is capped at maxRecoveryColumns by skipping the oldest
// columns for this emission; the window itself is not retired.
func (e *encoder) emitRecovery(out *Recovery) error {
	e.retireExpired(e.c.now())
	if e.count == 0 {
		return ErrNeedsMoreData
	}

	n := e.count
	if n > maxRecoveryColumns {
		n = maxRecoveryColumns
	}
	firstOff := e.count - n

	maxBytes := 0
	for j := 0; j < n; j++ {
		entry := &e.entries[(e.start+firstOff+j)%matrixColumnCount]
		if len(entry.data) > maxBytes {
			maxBytes = len(entry.data)
		}
	}

	payloadBytes := encodeOverhead + maxBytes
	e.scratch = e.c.alloc.Grow(e.scratch, payloadBytes)
	if e.scratch == nil {
		return e.c.fail(ErrOutOfMemory)
	}
	payload := e.scratch[:payloadBytes]
	for i := range payload {
		payload[i] = 0
	}

	row := e.nextRow
	e.nextRow = (e.nextRow + 1) % matrixRowCount

	for j := 0; j < n; j++ {
		entry := &e.entries[(e.start+firstOff+j)%matrixColumnCount]
		coef := matrixElement(row, uint8(j))
		var prefix [encodeOverhead]byte
		binary.LittleEndian.PutUint16(prefix[:], uint16(len(entry.data)))
		mulAddSlice(payload[:encodeOverhead], prefix[:], coef)
		mulAddSlice(payload[encodeOverhead:], entry.data, coef)
	}

	out.SequenceStart = e.columnBase + uint64(firstOff)
	out.Count = uint8(n)
	out.Row = row
	out.Data = payload
	return nil
}

func (e *encoder) retireExpired(now uint64) {
	for e.count > 0 {
		oldest := &e.entries[e.start]
		if now-oldest.tUsec <= e.c.windowUsec {
			break
		}
		e.retireOldest()
	}
}

func (e *encoder) retireOldest() {
	e.c.alloc.Free(e.entries[e.start].data)
	e.entries[e.start] = encEntry{}
	e.start = (e.start + 1) % matrixColumnCount
	e.count--
	e.columnBase++
}
