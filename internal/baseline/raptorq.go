package baseline

import (
	"fmt"

	rqq "github.com/xssnick/raptorq"
)

// RaptorQ wraps systematic RaptorQ as a block code. Sources must share one
// symbol length; the block payload is their concatenation.
type RaptorQ struct {
	k, n, l int
}

func NewRaptorQ(n, k, symbolLen int) (*RaptorQ, error) {
	if k <= 0 || n <= k || symbolLen <= 0 {
		return nil, fmt.Errorf("baseline: bad RaptorQ params n=%d k=%d l=%d", n, k, symbolLen)
	}
	return &RaptorQ{k: k, n: n, l: symbolLen}, nil
}

func (r *RaptorQ) Name() string { return "raptorq" }

func (r *RaptorQ) Encode(src [][]byte) ([][]byte, error) {
	if len(src) != r.k {
		return nil, fmt.Errorf("baseline: RaptorQ encode wants %d sources, got %d", r.k, len(src))
	}
	data := make([]byte, 0, r.k*r.l)
	for _, s := range src {
		if len(s) != r.l {
			return nil, fmt.Errorf("baseline: RaptorQ symbol length %d != %d", len(s), r.l)
		}
		data = append(data, s...)
	}
	rq := rqq.NewRaptorQ(uint32(r.l))
	enc, err := rq.CreateEncoder(data)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = enc.GenSymbol(uint32(i))
	}
	return out, nil
}

func (r *RaptorQ) Decode(recv [][]byte) ([][]byte, bool) {
	if len(recv) != r.n {
		return nil, false
	}
	rq := rqq.NewRaptorQ(uint32(r.l))
	dec, err := rq.CreateDecoder(uint32(r.k * r.l))
	if err != nil {
		return nil, false
	}
	for i, s := range recv {
		if s == nil {
			continue
		}
		if _, err := dec.AddSymbol(uint32(i), s); err != nil {
			// ignore bad symbol; continue adding
			continue
		}
	}
	ok, data, err := dec.Decode()
	if err != nil || !ok {
		return nil, false
	}
	out := make([][]byte, r.k)
	for i := 0; i < r.k; i++ {
		out[i] = data[i*r.l : (i+1)*r.l]
	}
	return out, true
}
