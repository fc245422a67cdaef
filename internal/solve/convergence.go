package solve

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines parameters for detecting that a run has stalled
type ConvergenceConfig struct {
	// Patience is the number of steps with no significant improvement before stopping.
	// Zero disables detection.
	Patience int

	// Threshold is the minimum relative improvement required to count as progress
	// Example: 0.001 = 0.1% shorter tour required
	// Relative improvement = (oldLength - newLength) / oldLength
	Threshold float64
}

// ConvergenceTracker tracks best-length history and detects when a run has converged
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	bestLength      float64 // Best length ever seen
	lastSignificant float64 // Last length that was a significant improvement
	staleCount      int     // Number of steps without significant improvement
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		bestLength:      math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Enabled reports whether the tracker can ever signal convergence.
func (c *ConvergenceTracker) Enabled() bool {
	return c.config.Patience > 0
}

// Update records a new best length and returns true if convergence is detected
func (c *ConvergenceTracker) Update(length float64) bool {
	if !c.Enabled() {
		return false
	}

	c.history = append(c.history, length)
	if length < c.bestLength {
		c.bestLength = length
	}

	// First value - initialize lastSignificant
	if len(c.history) == 1 {
		c.lastSignificant = length
		return false
	}

	var relativeImprovement float64
	if c.lastSignificant > 0 {
		relativeImprovement = (c.lastSignificant - length) / c.lastSignificant
	}

	if relativeImprovement > 0 && relativeImprovement >= c.config.Threshold {
		c.lastSignificant = length
		c.staleCount = 0
		slog.Debug("Length improvement detected",
			"length", length,
			"relative_improvement", relativeImprovement,
		)
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_length", c.bestLength,
		)
		return true
	}
	return false
}

// BestLength returns the best length seen so far
func (c *ConvergenceTracker) BestLength() float64 {
	return c.bestLength
}

// History returns the full length history
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the current number of steps without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state
func (c *ConvergenceTracker) Reset() {
	c.history = nil
	c.bestLength = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
