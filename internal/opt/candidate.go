package opt

import "math/rand"

// Candidate is the capability set a solution representation provides to the
// engines. C is the concrete representation type, usually a pointer.
//
// Implementations must keep their representation invariant under Crossover
// and Mutate, and Fitness must always reflect the current chromosome
// (higher is better).
type Candidate[C any] interface {
	// Fitness scores the chromosome. Pure and re-derivable at any time.
	Fitness() float64

	// Crossover returns a child combining both parents with probability rate,
	// otherwise a clone of the receiver. Neither parent is modified or aliased.
	Crossover(other C, rate float64, rng *rand.Rand) C

	// Mutate perturbs the chromosome in place, each position with probability rate.
	Mutate(rate float64, rng *rand.Rand)

	// Clone returns an independent deep copy.
	Clone() C
}

// Generator builds a valid random candidate from a problem domain captured
// by the closure.
type Generator[C any] func(rng *rand.Rand) (C, error)

// NewPopulation draws size random candidates from gen.
func NewPopulation[C Candidate[C]](size int, gen Generator[C], rng *rand.Rand) ([]C, error) {
	if err := ValidatePopulationSize(size); err != nil {
		return nil, err
	}

	pop := make([]C, size)
	for i := range pop {
		c, err := gen(rng)
		if err != nil {
			return nil, err
		}
		pop[i] = c
	}
	return pop, nil
}
