package tsp

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare() []Point {
	return []Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
}

// requirePermutation checks that tour visits exactly the multiset of cities.
func requirePermutation(t *testing.T, cities []Point, tour *Tour) {
	t.Helper()
	require.Equal(t, len(cities), tour.Len())
	require.True(t, isPermutation(tour.order, len(cities)), "order %v is not a permutation", tour.order)

	want := append([]Point(nil), cities...)
	got := tour.Points()
	less := func(p []Point) func(i, j int) bool {
		return func(i, j int) bool {
			if p[i].X != p[j].X {
				return p[i].X < p[j].X
			}
			return p[i].Y < p[j].Y
		}
	}
	sort.Slice(want, less(want))
	sort.Slice(got, less(got))
	require.Empty(t, cmp.Diff(want, got))
}

func TestTourLength_UnitSquare(t *testing.T) {
	tour := IdentityTour(unitSquare())
	assert.InDelta(t, 4.0, tour.Length(), 1e-12)
	assert.InDelta(t, 4.0, TourLength(unitSquare()), 1e-12)

	// Crossing the diagonals makes the tour longer.
	crossed, err := NewTour(unitSquare(), []int{0, 2, 1, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2+2*math.Sqrt2, crossed.Length(), 1e-12)
}

func TestTourLength_IncludesClosingEdge(t *testing.T) {
	line := []Point{{0, 0}, {3, 0}}
	assert.InDelta(t, 6.0, TourLength(line), 1e-12)
}

func TestTourLength_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, TourLength(nil))
	assert.Equal(t, 0.0, TourLength([]Point{{5, 5}}))
	assert.Equal(t, 0.0, TourLength([]Point{{1, 1}, {1, 1}, {1, 1}}))

	tour := IdentityTour([]Point{{2, 2}})
	assert.Equal(t, 1.0, tour.Fitness())
	assert.False(t, math.IsNaN(tour.Fitness()))
}

func TestFitness_MonotonicInLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cities := RandomCities(12, 100, 100, rng)

	for i := 0; i < 200; i++ {
		a, err := RandomTour(cities, rng)
		require.NoError(t, err)
		b, err := RandomTour(cities, rng)
		require.NoError(t, err)

		switch {
		case a.Length() < b.Length():
			assert.Greater(t, a.Fitness(), b.Fitness())
		case a.Length() > b.Length():
			assert.Less(t, a.Fitness(), b.Fitness())
		}
		assert.Greater(t, a.Fitness(), 0.0)
		assert.InDelta(t, a.Length(), LengthFromFitness(a.Fitness()), 1e-9)
	}
}

func TestNewTour_RejectsNonPermutation(t *testing.T) {
	cities := unitSquare()
	for _, order := range [][]int{
		{0, 1, 2},
		{0, 1, 2, 2},
		{0, 1, 2, 4},
		{-1, 1, 2, 3},
	} {
		_, err := NewTour(cities, order)
		assert.ErrorIs(t, err, ErrInvalidOrder, "order %v", order)
	}
}

func TestRandomTour_RejectsTooFewDistinctCities(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := RandomTour([]Point{{0, 0}, {1, 1}, {0, 0}}, rng)
	assert.ErrorIs(t, err, ErrTooFewCities)

	_, err = RandomTour([]Point{{0, 0}, {1, math.NaN()}, {2, 2}}, rng)
	assert.ErrorIs(t, err, ErrNonFiniteCoordinate)
}

func TestCrossover_PreservesPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	// Duplicate coordinates must survive as distinct cities.
	cities := append(RandomCities(30, 10, 10, rng), Point{1, 1}, Point{1, 1})

	for i := 0; i < 500; i++ {
		a, err := RandomTour(cities, rng)
		require.NoError(t, err)
		b, err := RandomTour(cities, rng)
		require.NoError(t, err)
		aBefore, bBefore := a.Order(), b.Order()

		child := a.Crossover(b, 1.0, rng)
		requirePermutation(t, cities, child)

		// Parents are untouched.
		require.Equal(t, aBefore, a.order)
		require.Equal(t, bBefore, b.order)
	}
}

func TestCrossover_KeepsSliceFromFirstParent(t *testing.T) {
	a := []int{0, 1, 2, 3, 4, 5, 6, 7}
	b := []int{7, 6, 5, 4, 3, 2, 1, 0}
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 100; i++ {
		child := orderCrossover(a, b, rng)
		require.True(t, isPermutation(child, len(a)))

		// Genes outside the copied slice appear in b's relative order, so
		// every gene that differs from a must come from a descending run.
		var fromB []int
		for k, g := range child {
			if g != a[k] {
				fromB = append(fromB, g)
			}
		}
		for k := 1; k < len(fromB); k++ {
			require.Greater(t, fromB[k-1], fromB[k], "child %v", child)
		}
	}
}

func TestCrossover_RateZeroClones(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cities := RandomCities(10, 1, 1, rng)
	a, _ := RandomTour(cities, rng)
	b, _ := RandomTour(cities, rng)

	child := a.Crossover(b, 0, rng)
	assert.True(t, child.Equal(a))

	child.Mutate(1.0, rng)
	assert.NotSame(t, child, a)
	assert.True(t, isPermutation(a.order, len(cities)))
}

func TestMutate_PreservesPermutationAndInvalidatesLength(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cities := RandomCities(25, 50, 50, rng)

	tour, err := RandomTour(cities, rng)
	require.NoError(t, err)
	for i := 0; i < 300; i++ {
		tour.Mutate(0.2, rng)
		requirePermutation(t, cities, tour)
		assert.InDelta(t, TourLength(tour.Points()), tour.Length(), 1e-9)
	}
}

func TestMutate_RateZeroIsNoop(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tour := IdentityTour(unitSquare())
	tour.Mutate(0, rng)
	assert.Equal(t, []int{0, 1, 2, 3}, tour.Order())
}

func TestCrossoverThenMutate_PreservesPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	cities := RandomCities(40, 100, 100, rng)
	pop := make([]*Tour, 10)
	for i := range pop {
		pop[i], _ = RandomTour(cities, rng)
	}

	for gen := 0; gen < 50; gen++ {
		next := make([]*Tour, len(pop))
		for i := range next {
			child := pop[rng.Intn(len(pop))].Crossover(pop[rng.Intn(len(pop))], 0.7, rng)
			child.Mutate(0.05, rng)
			requirePermutation(t, cities, child)
			next[i] = child
		}
		pop = next
	}
}

func TestClone_IsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tour := IdentityTour(RandomCities(8, 1, 1, rng))
	clone := tour.Clone()
	clone.Mutate(1.0, rng)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, tour.Order())
}

func TestDecodeKeys(t *testing.T) {
	assert.Equal(t, []int{2, 0, 1}, DecodeKeys([]float64{0.5, 0.9, 0.1}))
	assert.Equal(t, []int{0, 1, 2}, DecodeKeys([]float64{0.3, 0.3, 0.3}))

	obj := KeysObjective(unitSquare())
	assert.InDelta(t, 4.0, obj([]float64{0.1, 0.2, 0.3, 0.4}), 1e-12)

	tour, err := TourFromKeys(unitSquare(), []float64{0.4, 0.3, 0.2, 0.1})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1, 0}, tour.Order())
}

func TestNeighborRate(t *testing.T) {
	assert.Equal(t, 1.0, NeighborRate(2))
	assert.Equal(t, 2.0/3, NeighborRate(3))
	assert.Equal(t, 0.02, NeighborRate(100))
	for _, n := range []int{3, 10, 1000} {
		assert.InDelta(t, 2.0, NeighborRate(n)*float64(n), 1e-9, "n=%d", n)
	}
}
