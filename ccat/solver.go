package ccat

import (
	"math/bits"
	"sort"
)

// Full Gaussian elimination over the group of pending rows that share
// unknowns with a newly inserted row. The solve runs on scratch copies so an
// abandoned attempt leaves the pending set untouched for later rounds.

type solveRow struct {
	vec     []byte // coefficients per selected unknown
	payload []byte // residual payload, zero-padded to the group maximum
	allOnes bool   // recovery row zero, every coefficient is 1
}

// trySolve resolves the unknown group connected to the most recently
// inserted pending row. Delivery is all-or-nothing per group: unless
// elimination reaches full rank and every recovered length prefix validates,
// nothing is stored and the pending rows stay live for later packets.
func (d *decoder) trySolve() error {
	if len(d.rows) < 2 {
		return nil
	}

	// Gather the connected component of rows and unknown columns.
	colRows := make(map[uint64][]int, len(d.rows))
	for i, r := range d.rows {
		r.eachUnknown(func(j int) {
			s := r.start + uint64(j)
			colRows[s] = append(colRows[s], i)
		})
	}
	inComp := make([]bool, len(d.rows))
	inCol := make(map[uint64]bool)
	stack := []int{len(d.rows) - 1}
	inComp[len(d.rows)-1] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r := d.rows[i]
		r.eachUnknown(func(j int) {
			s := r.start + uint64(j)
			if inCol[s] {
				return
			}
			inCol[s] = true
			for _, k := range colRows[s] {
				if !inComp[k] {
					inComp[k] = true
					stack = append(stack, k)
				}
			}
		})
	}

	cols := make([]uint64, 0, len(inCol))
	for s := range inCol {
		cols = append(cols, s)
	}
	sort.Slice(cols, func(a, b int) bool { return cols[a] < cols[b] })
	k := len(cols)
	if k > maxRecoveryColumns {
		return nil
	}
	rowIdxs := make([]int, 0, len(d.rows))
	for i := range d.rows {
		if inComp[i] {
			rowIdxs = append(rowIdxs, i)
		}
	}
	if len(rowIdxs) < k {
		return nil
	}
	d.c.stats.SolveAttempts++

	colIndex := make(map[uint64]int, k)
	for i, s := range cols {
		colIndex[s] = i
	}
	maxLen := 0
	for _, i := range rowIdxs {
		if len(d.rows[i].payload) > maxLen {
			maxLen = len(d.rows[i].payload)
		}
	}

	srows := make([]solveRow, 0, len(rowIdxs))
	release := func() {
		for _, sr := range srows {
			d.c.alloc.Free(sr.vec)
			d.c.alloc.Free(sr.payload)
		}
	}
	for _, i := range rowIdxs {
		r := d.rows[i]
		vec := d.c.alloc.Zalloc(k)
		payload := d.c.alloc.Zalloc(maxLen)
		if vec == nil || payload == nil {
			release()
			return d.c.fail(ErrOutOfMemory)
		}
		copy(payload, r.payload)
		r.eachUnknown(func(j int) {
			vec[colIndex[r.start+uint64(j)]] = matrixElement(r.row, uint8(j))
		})
		srows = append(srows, solveRow{vec: vec, payload: payload, allOnes: r.row == 0})
	}

	// All-ones rows pivot for free, so they go first.
	sortRowsAllOnesFirst(srows)

	// Forward elimination with partial pivoting.
	m := len(srows)
	for col := 0; col < k; col++ {
		pivot := -1
		for i := col; i < m; i++ {
			if srows[i].vec[col] != 0 {
				pivot = i
				break
			}
		}
		if pivot < 0 {
			release()
			d.c.stats.SolveFailures++
			return nil
		}
		srows[col], srows[pivot] = srows[pivot], srows[col]
		pv := srows[col].vec[col]
		for i := col + 1; i < m; i++ {
			a := srows[i].vec[col]
			if a == 0 {
				continue
			}
			factor := gfDiv(a, pv)
			for j := col; j < k; j++ {
				srows[i].vec[j] ^= gfMulByte(factor, srows[col].vec[j])
			}
			mulAddSlice(srows[i].payload, srows[col].payload, factor)
		}
	}

	// Back substitution, normalizing each pivot row on the way up.
	for col := k - 1; col >= 0; col-- {
		if inv := gfInv(srows[col].vec[col]); inv != 1 {
			for j := col; j < k; j++ {
				srows[col].vec[j] = gfMulByte(inv, srows[col].vec[j])
			}
			mulSlice(srows[col].payload, inv)
		}
		for i := 0; i < col; i++ {
			a := srows[i].vec[col]
			if a == 0 {
				continue
			}
			srows[i].vec[col] = 0
			mulAddSlice(srows[i].payload, srows[col].payload, a)
		}
	}

	// Validate every recovered length before committing anything.
	lengths := make([]int, k)
	for i := range cols {
		n := int(readLengthPrefix(srows[i].payload))
		if n > len(srows[i].payload)-encodeOverhead {
			release()
			d.c.stats.SolveFailures++
			return nil
		}
		lengths[i] = n
	}

	for i, seq := range cols {
		buf, err := d.store(seq, srows[i].payload[encodeOverhead:encodeOverhead+lengths[i]])
		if err != nil {
			release()
			return err
		}
		d.recovered = append(d.recovered, recoveredOriginal{seq: seq, data: buf})
	}

	// Every row in the group had all of its unknowns solved; retire them.
	for i := len(rowIdxs) - 1; i >= 0; i-- {
		d.dropRow(rowIdxs[i])
	}
	release()
	return nil
}

func (r *pendingRow) eachUnknown(fn func(j int)) {
	for w, word := range r.unknown {
		for word != 0 {
			j := w<<6 + bits.TrailingZeros64(word)
			word &= word - 1
			if j >= r.count {
				return
			}
			fn(j)
		}
	}
}

func sortRowsAllOnesFirst(rows []solveRow) {
	out := 0
	for i := range rows {
		if rows[i].allOnes {
			rows[out], rows[i] = rows[i], rows[out]
			out++
		}
	}
}
