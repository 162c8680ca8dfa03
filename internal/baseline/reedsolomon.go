package baseline

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// RS is a systematic Reed-Solomon block code over GF(256).
type RS struct {
	k, n int
	enc  reedsolomon.Encoder
}

func NewRS(n, k int) (*RS, error) {
	if k <= 0 || n <= k || n > 255 {
		return nil, fmt.Errorf("baseline: bad RS params n=%d k=%d", n, k)
	}
	enc, err := reedsolomon.New(k, n-k)
	if err != nil {
		return nil, fmt.Errorf("baseline: reedsolomon: %w", err)
	}
	return &RS{k: k, n: n, enc: enc}, nil
}

func (r *RS) Name() string { return "rs" }

func (r *RS) Encode(src [][]byte) ([][]byte, error) {
	if len(src) != r.k {
		return nil, fmt.Errorf("baseline: RS encode wants %d sources, got %d", r.k, len(src))
	}
	shards := make([][]byte, r.n)
	l := len(src[0])
	for i, s := range src {
		shards[i] = append([]byte(nil), s...)
	}
	for i := r.k; i < r.n; i++ {
		shards[i] = make([]byte, l)
	}
	if err := r.enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

func (r *RS) Decode(recv [][]byte) ([][]byte, bool) {
	if len(recv) != r.n {
		return nil, false
	}
	shards := make([][]byte, r.n)
	have := 0
	for i, s := range recv {
		if s != nil {
			shards[i] = append([]byte(nil), s...)
			have++
		}
	}
	if have < r.k {
		return nil, false
	}
	if err := r.enc.Reconstruct(shards); err != nil {
		return nil, false
	}
	return shards[:r.k], true
}
