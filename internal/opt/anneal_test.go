package opt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allOnes(n int) *bits {
	b := &bits{genes: make([]bool, n)}
	for i := range b.genes {
		b.genes[i] = true
	}
	return b
}

func TestMetropolis(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		require.True(t, Metropolis(0.001, 0, rng))
		require.False(t, Metropolis(-0.001, 0, rng))
		require.False(t, Metropolis(-1, 1e-12, rng))
	}

	accepted := 0
	const trials = 50000
	for i := 0; i < trials; i++ {
		if Metropolis(-1, 1, rng) {
			accepted++
		}
	}
	assert.InDelta(t, math.Exp(-1), float64(accepted)/trials, 0.01)
}

func TestNewSimulatedAnnealing_RejectsBadConfig(t *testing.T) {
	c := allOnes(4)
	for _, tt := range []struct {
		name          string
		temp, cooling float64
		opts          []AnnealOption
	}{
		{"negative temperature", -1, 0.9, nil},
		{"infinite temperature", math.Inf(1), 0.9, nil},
		{"cooling of one", 10, 1, nil},
		{"zero cooling", 10, 0, nil},
		{"neighbor rate above one", 10, 0.9, []AnnealOption{WithNeighborRate(1.5)}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSimulatedAnnealing(c, tt.temp, tt.cooling, tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestAnneal_ColdNeverAcceptsWorse(t *testing.T) {
	sa, err := NewSimulatedAnnealing(allOnes(16), 0, 0.9, WithAnnealSeed(3), WithNeighborRate(0.2))
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		sa.Step()
	}
	assert.Equal(t, 16.0, sa.Current().Fitness())
	assert.Equal(t, 0.0, sa.AcceptanceRatio())
	assert.Equal(t, 500, sa.Iteration())
}

func TestAnneal_BestIsMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	start, _ := newBits(40, rng)
	sa, err := NewSimulatedAnnealing(start, 5, 0.99, WithAnnealRand(rng), WithNeighborRate(0.05))
	require.NoError(t, err)

	prev := sa.BestFitness()
	for i := 0; i < 2000; i++ {
		sa.Step()
		require.GreaterOrEqual(t, sa.BestFitness(), prev)
		require.GreaterOrEqual(t, sa.BestFitness(), sa.Current().Fitness())
		prev = sa.BestFitness()
	}
	assert.Equal(t, sa.BestFitness(), sa.Best().Fitness())
	assert.Greater(t, sa.BestFitness(), start.Fitness())
}

func TestAnneal_GeometricCooling(t *testing.T) {
	sa, err := NewSimulatedAnnealing(allOnes(4), 100, 0.5, WithAnnealSeed(1))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		sa.Step()
	}
	assert.InDelta(t, 6.25, sa.Temperature(), 1e-12)

	require.NoError(t, sa.SetTemperature(10))
	require.NoError(t, sa.SetCoolingFactor(0.9))
	sa.Step()
	assert.InDelta(t, 9.0, sa.Temperature(), 1e-12)

	assert.ErrorIs(t, sa.SetCoolingFactor(1.5), ErrInvalidConfig)
	assert.ErrorIs(t, sa.SetTemperature(math.NaN()), ErrInvalidConfig)
}

func TestAnneal_DoesNotAliasInitial(t *testing.T) {
	start := allOnes(8)
	sa, err := NewSimulatedAnnealing(start, 100, 0.99, WithAnnealSeed(2), WithNeighborRate(1))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		sa.Step()
	}
	assert.True(t, start.equal(allOnes(8)))
}

func TestCalibrateTemperature(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	// Flipping every bit of the optimum always loses 10.
	temp := CalibrateTemperature(allOnes(10), 1, 20, 0.5, rng)
	assert.InDelta(t, 10/math.Ln2, temp, 1e-9)

	// No worsening neighbor at rate 0.
	assert.Equal(t, 0.0, CalibrateTemperature(allOnes(10), 0, 20, 0.5, rng))
	assert.Equal(t, 0.0, CalibrateTemperature(allOnes(10), 1, 0, 0.5, rng))
	assert.Equal(t, 0.0, CalibrateTemperature(allOnes(10), 1, 20, 1, rng))
}
