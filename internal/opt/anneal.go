package opt

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
)

// DefaultNeighborRate is the per-gene mutation rate used to draw SA neighbors
// when WithNeighborRate is not given. The engine does not know the candidate
// size; tour searches always pass tsp.NeighborRate instead.
const DefaultNeighborRate = 0.05

// AnnealOption configures a SimulatedAnnealing at construction.
type AnnealOption func(*saSettings) error

type saSettings struct {
	rng          *rand.Rand
	neighborRate float64
}

// WithAnnealRand injects the random source for neighbor and acceptance draws.
func WithAnnealRand(rng *rand.Rand) AnnealOption {
	return func(s *saSettings) error {
		s.rng = rng
		return nil
	}
}

// WithAnnealSeed seeds a private random source.
func WithAnnealSeed(seed int64) AnnealOption {
	return func(s *saSettings) error {
		s.rng = rand.New(rand.NewSource(seed))
		return nil
	}
}

// WithNeighborRate sets the mutation rate used to perturb the current candidate.
func WithNeighborRate(rate float64) AnnealOption {
	return func(s *saSettings) error {
		if err := ValidateRate("neighbor_rate", rate); err != nil {
			return err
		}
		s.neighborRate = rate
		return nil
	}
}

// SimulatedAnnealing is a single-trajectory optimizer with geometric cooling.
// It has no stop rule of its own; callers invoke Step until they are done.
type SimulatedAnnealing[C Candidate[C]] struct {
	mu sync.RWMutex

	current        C
	currentFitness float64
	best           C
	bestFitness    float64

	temperature  float64
	cooling      float64
	neighborRate float64

	rng       *rand.Rand
	iteration int
	accepted  int
}

func validateTemperature(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return &ConfigError{Param: "temperature", Value: t, Reason: "must be finite and non-negative"}
	}
	return nil
}

func validateCooling(f float64) error {
	if math.IsNaN(f) || f <= 0 || f >= 1 {
		return &ConfigError{Param: "cooling", Value: f, Reason: "must be in (0, 1)"}
	}
	return nil
}

// NewSimulatedAnnealing starts a trajectory at a copy of initial.
func NewSimulatedAnnealing[C Candidate[C]](initial C, temperature, cooling float64, opts ...AnnealOption) (*SimulatedAnnealing[C], error) {
	if err := validateTemperature(temperature); err != nil {
		return nil, err
	}
	if err := validateCooling(cooling); err != nil {
		return nil, err
	}

	settings := saSettings{neighborRate: DefaultNeighborRate}
	for _, o := range opts {
		if err := o(&settings); err != nil {
			return nil, err
		}
	}
	if settings.rng == nil {
		settings.rng = rand.New(rand.NewSource(rand.Int63()))
	}

	current := initial.Clone()
	f := current.Fitness()
	return &SimulatedAnnealing[C]{
		current:        current,
		currentFitness: f,
		best:           current.Clone(),
		bestFitness:    f,
		temperature:    temperature,
		cooling:        cooling,
		neighborRate:   settings.neighborRate,
		rng:            settings.rng,
	}, nil
}

// Metropolis decides whether to move to a neighbor whose fitness differs from
// the current one by delta. Improvements are always taken; otherwise the move
// is taken with probability exp(delta / temperature), and never at T <= 0.
func Metropolis(delta, temperature float64, rng *rand.Rand) bool {
	if delta > 0 {
		return true
	}
	if temperature <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(delta/temperature)
}

// Step draws one neighbor, applies the Metropolis criterion, tracks the best
// candidate seen and cools the temperature.
func (sa *SimulatedAnnealing[C]) Step() {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	neighbor := sa.current.Clone()
	neighbor.Mutate(sa.neighborRate, sa.rng)
	nf := neighbor.Fitness()

	if nf > sa.bestFitness {
		sa.best = neighbor.Clone()
		sa.bestFitness = nf
	}

	if Metropolis(nf-sa.currentFitness, sa.temperature, sa.rng) {
		sa.current = neighbor
		sa.currentFitness = nf
		sa.accepted++
	}

	sa.temperature *= sa.cooling
	sa.iteration++
}

// Best returns a copy of the best candidate seen so far.
func (sa *SimulatedAnnealing[C]) Best() C {
	sa.mu.RLock()
	defer sa.mu.RUnlock()
	return sa.best.Clone()
}

// BestFitness returns the fitness of Best.
func (sa *SimulatedAnnealing[C]) BestFitness() float64 {
	sa.mu.RLock()
	defer sa.mu.RUnlock()
	return sa.bestFitness
}

// Current returns a copy of the candidate the trajectory sits on.
func (sa *SimulatedAnnealing[C]) Current() C {
	sa.mu.RLock()
	defer sa.mu.RUnlock()
	return sa.current.Clone()
}

// Temperature is the current temperature.
func (sa *SimulatedAnnealing[C]) Temperature() float64 {
	sa.mu.RLock()
	defer sa.mu.RUnlock()
	return sa.temperature
}

// Iteration counts completed Step calls.
func (sa *SimulatedAnnealing[C]) Iteration() int {
	sa.mu.RLock()
	defer sa.mu.RUnlock()
	return sa.iteration
}

// AcceptanceRatio is accepted moves over iterations, 0 before the first Step.
func (sa *SimulatedAnnealing[C]) AcceptanceRatio() float64 {
	sa.mu.RLock()
	defer sa.mu.RUnlock()
	if sa.iteration == 0 {
		return 0
	}
	return float64(sa.accepted) / float64(sa.iteration)
}

// SetTemperature overrides the current temperature.
func (sa *SimulatedAnnealing[C]) SetTemperature(t float64) error {
	if err := validateTemperature(t); err != nil {
		return err
	}
	sa.mu.Lock()
	defer sa.mu.Unlock()
	sa.temperature = t
	return nil
}

// SetCoolingFactor changes the geometric cooling factor.
func (sa *SimulatedAnnealing[C]) SetCoolingFactor(f float64) error {
	if err := validateCooling(f); err != nil {
		return err
	}
	sa.mu.Lock()
	defer sa.mu.Unlock()
	sa.cooling = f
	return nil
}

// CalibrateTemperature estimates a starting temperature at which a typical
// worsening move from c is accepted with the given probability. It samples
// neighbors drawn with rate and returns 0 if none of them is worse.
func CalibrateTemperature[C Candidate[C]](c C, rate float64, samples int, acceptance float64, rng *rand.Rand) float64 {
	if samples <= 0 || acceptance <= 0 || acceptance >= 1 {
		return 0
	}

	base := c.Fitness()
	var sum float64
	var worse int
	for i := 0; i < samples; i++ {
		n := c.Clone()
		n.Mutate(rate, rng)
		if d := n.Fitness() - base; d < 0 {
			sum += -d
			worse++
		}
	}
	if worse == 0 {
		return 0
	}

	t := (sum / float64(worse)) / -math.Log(acceptance)
	slog.Debug("Calibrated initial temperature", "samples", samples, "worse", worse, "temperature", t)
	return t
}
