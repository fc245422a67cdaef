package opt

import "math/rand"

// bits is a OneMax candidate: fitness is the number of set bits.
type bits struct {
	genes []bool
}

func newBits(n int, rng *rand.Rand) (*bits, error) {
	b := &bits{genes: make([]bool, n)}
	for i := range b.genes {
		b.genes[i] = rng.Intn(2) == 1
	}
	return b, nil
}

func (b *bits) Fitness() float64 {
	var n float64
	for _, g := range b.genes {
		if g {
			n++
		}
	}
	return n
}

func (b *bits) Crossover(other *bits, rate float64, rng *rand.Rand) *bits {
	if rng.Float64() >= rate {
		return b.Clone()
	}
	cut := rng.Intn(len(b.genes) + 1)
	child := &bits{genes: make([]bool, len(b.genes))}
	copy(child.genes, b.genes[:cut])
	copy(child.genes[cut:], other.genes[cut:])
	return child
}

func (b *bits) Mutate(rate float64, rng *rand.Rand) {
	for i := range b.genes {
		if rng.Float64() < rate {
			b.genes[i] = !b.genes[i]
		}
	}
}

func (b *bits) Clone() *bits {
	return &bits{genes: append([]bool(nil), b.genes...)}
}

func (b *bits) equal(o *bits) bool {
	if len(b.genes) != len(o.genes) {
		return false
	}
	for i := range b.genes {
		if b.genes[i] != o.genes[i] {
			return false
		}
	}
	return true
}

// fixed is a candidate with a constant fitness that never changes.
type fixed struct {
	id    int
	score float64
}

func (f *fixed) Fitness() float64                                   { return f.score }
func (f *fixed) Crossover(_ *fixed, _ float64, _ *rand.Rand) *fixed { return f.Clone() }
func (f *fixed) Mutate(float64, *rand.Rand)                         {}
func (f *fixed) Clone() *fixed                                      { c := *f; return &c }
