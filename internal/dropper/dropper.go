// Package dropper provides deterministic loss decisions for simulations.
package dropper

import "github.com/wirefec/ccat/internal/pcg"

// Bernoulli drops each packet independently with probability p, drawing from
// a caller-owned PCG stream so runs reproduce across platforms.
type Bernoulli struct {
	thresh uint32
	rng    *pcg.Rand
}

func New(p float64, rng *pcg.Rand) *Bernoulli {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &Bernoulli{thresh: uint32(p * float64(^uint32(0))), rng: rng}
}

func (b *Bernoulli) Drop() bool {
	if b.thresh == 0 {
		return false
	}
	return b.rng.Next() < b.thresh
}
