package tsp

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/cwbudde/evotsp/internal/opt"
)

// Tour is a candidate solution: a visiting order over a shared city set.
//
// The city slice is shared read-only between every tour of a run; only the
// order is owned. Length is cached and recomputed after any change.
type Tour struct {
	cities []Point
	order  []int

	length float64
	scored bool
}

var _ opt.Candidate[*Tour] = (*Tour)(nil)

// NewTour builds a tour visiting cities in the given order.
func NewTour(cities []Point, order []int) (*Tour, error) {
	if !isPermutation(order, len(cities)) {
		return nil, ErrInvalidOrder
	}
	return &Tour{cities: cities, order: append([]int(nil), order...)}, nil
}

// IdentityTour visits cities in input order.
func IdentityTour(cities []Point) *Tour {
	order := make([]int, len(cities))
	for i := range order {
		order[i] = i
	}
	return &Tour{cities: cities, order: order}
}

// RandomTour returns a uniformly shuffled tour over cities.
func RandomTour(cities []Point, rng *rand.Rand) (*Tour, error) {
	if err := ValidateCities(cities); err != nil {
		return nil, err
	}
	t := IdentityTour(cities)
	rng.Shuffle(len(t.order), func(i, j int) {
		t.order[i], t.order[j] = t.order[j], t.order[i]
	})
	return t, nil
}

// Generator returns an opt.Generator drawing random tours over cities.
func Generator(cities []Point) opt.Generator[*Tour] {
	return func(rng *rand.Rand) (*Tour, error) {
		return RandomTour(cities, rng)
	}
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Len is the number of cities visited.
func (t *Tour) Len() int {
	return len(t.order)
}

// Order returns a copy of the visiting order as city indices.
func (t *Tour) Order() []int {
	return append([]int(nil), t.order...)
}

// Points returns the cities in visiting order.
func (t *Tour) Points() []Point {
	pts := make([]Point, len(t.order))
	for i, idx := range t.order {
		pts[i] = t.cities[idx]
	}
	return pts
}

// Cities returns the shared city set.
func (t *Tour) Cities() []Point {
	return t.cities
}

// Length is the closed tour length.
func (t *Tour) Length() float64 {
	if !t.scored {
		t.length = t.computeLength()
		t.scored = true
	}
	return t.length
}

func (t *Tour) computeLength() float64 {
	n := len(t.order)
	if n < 2 {
		return 0
	}
	var sum float64
	prev := t.cities[t.order[n-1]]
	for _, idx := range t.order {
		cur := t.cities[idx]
		sum += prev.Distance(cur)
		prev = cur
	}
	return sum
}

// Fitness is 1 / (1 + length).
func (t *Tour) Fitness() float64 {
	return FitnessFromLength(t.Length())
}

// Clone copies the order and the cached length.
func (t *Tour) Clone() *Tour {
	return &Tour{
		cities: t.cities,
		order:  append([]int(nil), t.order...),
		length: t.length,
		scored: t.scored,
	}
}

// Equal reports whether both tours visit the same cities in the same order.
func (t *Tour) Equal(other *Tour) bool {
	if other == nil || len(t.order) != len(other.order) {
		return false
	}
	for i := range t.order {
		if t.order[i] != other.order[i] {
			return false
		}
	}
	return true
}

// Crossover applies order crossover with probability rate, otherwise it
// returns a clone of t.
func (t *Tour) Crossover(other *Tour, rate float64, rng *rand.Rand) *Tour {
	if len(t.order) < 2 || rng.Float64() >= rate {
		return t.Clone()
	}
	return &Tour{cities: t.cities, order: orderCrossover(t.order, other.order, rng)}
}

// NeighborRate is the swap rate that draws about two swaps per SA move on
// an n-city tour, capped at 1.
func NeighborRate(n int) float64 {
	if n <= 2 {
		return 1
	}
	return 2 / float64(n)
}

// Mutate swaps each position with a uniformly drawn position with probability rate.
func (t *Tour) Mutate(rate float64, rng *rand.Rand) {
	n := len(t.order)
	if n < 2 || rate <= 0 {
		return
	}
	changed := false
	for i := range t.order {
		if rng.Float64() < rate {
			j := rng.Intn(n)
			if i != j {
				t.order[i], t.order[j] = t.order[j], t.order[i]
				changed = true
			}
		}
	}
	if changed {
		t.scored = false
	}
}

func (t *Tour) String() string {
	var b strings.Builder
	for i, idx := range t.order {
		if i > 0 {
			b.WriteString(" -> ")
		}
		b.WriteString(t.cities[idx].String())
	}
	return fmt.Sprintf("%s [length %.4f]", b.String(), t.Length())
}
