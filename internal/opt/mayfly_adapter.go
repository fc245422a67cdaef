package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MinMayflyPopulation is the smallest swarm the mayfly library accepts.
const MinMayflyPopulation = 20

// MayflyAdapter wraps the mayfly swarm optimizer behind Optimizer.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a mayfly optimizer. popSize is raised to MinMayflyPopulation.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	if popSize < MinMayflyPopulation {
		popSize = MinMayflyPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the swarm. The library takes scalar bounds, so lower[0] and
// upper[0] apply to every dimension.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Fall back to the lower corner so callers always get a decodable vector.
		slog.Warn("Mayfly optimization failed", "error", err, "dim", dim)
		fallback := make([]float64, dim)
		for i := range fallback {
			fallback[i] = lower[0]
		}
		return fallback, eval(fallback)
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost
}
