package solve

import (
	"context"
	"math/rand"
	"testing"

	"github.com/cwbudde/evotsp/internal/opt"
	"github.com/cwbudde/evotsp/internal/tsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare() []tsp.Point {
	return []tsp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 0}}
}

func requirePermutation(t *testing.T, order []int, n int) {
	t.Helper()
	require.Len(t, order, n)
	seen := make([]bool, n)
	for _, v := range order {
		require.True(t, v >= 0 && v < n && !seen[v], "order %v", order)
		seen[v] = true
	}
}

func TestOptimize_GAUnitSquare(t *testing.T) {
	p := DefaultParams()
	p.PopSize = 20
	p.Generations = 100
	p.Seed = 7

	res, err := Optimize(context.Background(), unitSquare(), p)
	require.NoError(t, err)

	requirePermutation(t, res.BestOrder, 4)
	assert.LessOrEqual(t, res.BestLength, 4.5)
	assert.LessOrEqual(t, res.BestLength, res.InitialLength)
	assert.Equal(t, ModeGA, res.Mode)
	assert.Equal(t, 100, res.Iterations)
}

func TestOptimize_GAImprovesRandomInstance(t *testing.T) {
	cities := tsp.RandomCities(30, 100, 100, rand.New(rand.NewSource(3)))

	for _, sel := range []string{"roulette", "tournament", "rank"} {
		t.Run(sel, func(t *testing.T) {
			p := DefaultParams()
			p.PopSize = 40
			p.Generations = 200
			p.Selection = sel
			p.MutationRate = 0.02
			p.Workers = 2

			res, err := Optimize(context.Background(), cities, p)
			require.NoError(t, err)
			requirePermutation(t, res.BestOrder, len(cities))
			assert.Less(t, res.BestLength, res.InitialLength)
		})
	}
}

func TestOptimize_SAUnitSquare(t *testing.T) {
	p := DefaultParams()
	p.Mode = ModeSA
	p.Generations = 2000
	p.Seed = 11

	var last Progress
	res, err := Optimize(context.Background(), unitSquare(), p, WithProgress(func(pr Progress) {
		last = pr
	}, 100))
	require.NoError(t, err)

	assert.InDelta(t, 4.0, res.BestLength, 1e-9)
	assert.Equal(t, 2000, last.Iteration)
	assert.Equal(t, res.BestLength, last.BestLength)
}

func TestOptimize_Mayfly(t *testing.T) {
	cities := tsp.RandomCities(8, 10, 10, rand.New(rand.NewSource(1)))
	p := DefaultParams()
	p.Mode = ModeMayfly
	p.Generations = 30
	p.PopSize = 20

	res, err := Optimize(context.Background(), cities, p)
	require.NoError(t, err)
	requirePermutation(t, res.BestOrder, len(cities))
	assert.LessOrEqual(t, res.BestLength, res.InitialLength)
	assert.InDelta(t, tsp.TourLength(res.Tour.Points()), res.BestLength, 1e-9)
}

func TestOptimize_Deterministic(t *testing.T) {
	cities := tsp.RandomCities(15, 50, 50, rand.New(rand.NewSource(5)))
	p := DefaultParams()
	p.Generations = 50
	p.PopSize = 30

	a, err := Optimize(context.Background(), cities, p)
	require.NoError(t, err)
	b, err := Optimize(context.Background(), cities, p)
	require.NoError(t, err)

	assert.Equal(t, a.BestOrder, b.BestOrder)
	assert.Equal(t, a.BestLength, b.BestLength)
}

func TestOptimize_RejectsBadInput(t *testing.T) {
	p := DefaultParams()
	p.PopSize = 0
	_, err := Optimize(context.Background(), unitSquare(), p)
	assert.ErrorIs(t, err, opt.ErrInvalidConfig)

	_, err = Optimize(context.Background(), []tsp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, DefaultParams())
	assert.ErrorIs(t, err, tsp.ErrTooFewCities)

	_, err = Optimize(context.Background(), unitSquare(), DefaultParams(), WithWarmStart([]int{0, 1, 1, 2}))
	assert.ErrorIs(t, err, tsp.ErrInvalidOrder)
}

func TestOptimize_CancelledReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultParams()
	p.Generations = 1000

	res, err := Optimize(ctx, unitSquare(), p, WithProgress(func(pr Progress) {
		if pr.Iteration == 10 {
			cancel()
		}
	}, 1))
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, 10, res.Iterations)
	requirePermutation(t, res.BestOrder, 4)
}

func TestOptimize_Converges(t *testing.T) {
	for _, mode := range []Mode{ModeGA, ModeSA} {
		t.Run(string(mode), func(t *testing.T) {
			p := DefaultParams()
			p.Mode = mode
			p.Generations = 10000
			p.Patience = 20
			p.Seed = 11

			// No progress callback: convergence must not need one.
			res, err := Optimize(context.Background(), unitSquare(), p)
			require.NoError(t, err)
			assert.True(t, res.Converged)
			assert.Less(t, res.Iterations, 10000)
		})
	}
}

func TestOptimize_ProgressCarriesInitialLength(t *testing.T) {
	p := DefaultParams()
	p.Generations = 5
	p.Seed = 3

	var last Progress
	res, err := Optimize(context.Background(), unitSquare(), p, WithProgress(func(pr Progress) {
		last = pr
	}, 1))
	require.NoError(t, err)
	assert.Equal(t, res.InitialLength, last.InitialLength)
	assert.GreaterOrEqual(t, last.InitialLength, last.BestLength)
}

func TestOptimize_WarmStartKeepsSolution(t *testing.T) {
	square := []tsp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0.5, Y: 0}}
	p := DefaultParams()
	p.Generations = 1
	p.PopSize = 5
	p.Elitism = 0.2

	res, err := Optimize(context.Background(), square, p, WithWarmStart([]int{0, 1, 2, 3, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.BestLength, 1e-9)
}

func TestOptimize_ControlsAppliedBetweenGenerations(t *testing.T) {
	controls := NewControls()
	p := DefaultParams()
	p.Generations = 20

	var seen []opt.GAParams
	_, err := Optimize(context.Background(), unitSquare(), p,
		WithControls(controls),
		WithProgress(func(pr Progress) {
			seen = append(seen, *pr.Params)
			if pr.Iteration == 5 {
				require.NoError(t, controls.SetMutationRate(0.5))
				require.NoError(t, controls.SetSelectionTarget(0.3))
				require.NoError(t, controls.SetElitism(0))
			}
		}, 1),
	)
	require.NoError(t, err)
	require.Len(t, seen, 20)

	assert.Equal(t, 0.01, seen[4].MutationRate)
	assert.Equal(t, 0.5, seen[5].MutationRate)
	assert.Equal(t, 0.3, seen[5].SelectionTarget)
	assert.Equal(t, 0.0, seen[5].Elitism)
	assert.Equal(t, 0.7, seen[5].CrossoverRate)
	assert.True(t, controls.Pending().IsEmpty())
}

func TestControls_RejectsInvalidUpdate(t *testing.T) {
	c := NewControls()
	bad := 1.5
	good := 0.2
	err := c.Update(ControlUpdate{MutationRate: &good, Elitism: &bad})
	assert.ErrorIs(t, err, opt.ErrInvalidConfig)
	assert.True(t, c.Pending().IsEmpty())

	cooling := 1.0
	assert.ErrorIs(t, c.Update(ControlUpdate{Cooling: &cooling}), opt.ErrInvalidConfig)

	require.NoError(t, c.SetMutationRate(0.1))
	require.NoError(t, c.SetMutationRate(0.3))
	require.NotNil(t, c.Pending().MutationRate)
	assert.Equal(t, 0.3, *c.Pending().MutationRate)
}
