package opt

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/alitto/pond"
)

// DefaultElitism is the elitism fraction used when WithElitism is not given.
const DefaultElitism = 0.1

// GAParams is a snapshot of the genetic algorithm control parameters.
type GAParams struct {
	CrossoverRate   float64 `json:"crossoverRate"`
	MutationRate    float64 `json:"mutationRate"`
	Elitism         float64 `json:"elitism"`
	SelectionTarget float64 `json:"selectionTarget"`
}

// Validate checks that every rate lies in [0, 1].
func (p GAParams) Validate() error {
	if err := ValidateRate("crossover_rate", p.CrossoverRate); err != nil {
		return err
	}
	if err := ValidateRate("mutation_rate", p.MutationRate); err != nil {
		return err
	}
	if err := ValidateRate("elitism", p.Elitism); err != nil {
		return err
	}
	return ValidateRate("selection_target", p.SelectionTarget)
}

// Option configures a GeneticAlgorithm at construction.
type Option func(*gaSettings) error

type gaSettings struct {
	rng     *rand.Rand
	elitism float64
	workers int
}

// WithRand injects the random source driving every stochastic operator.
func WithRand(rng *rand.Rand) Option {
	return func(s *gaSettings) error {
		s.rng = rng
		return nil
	}
}

// WithSeed seeds a private random source.
func WithSeed(seed int64) Option {
	return func(s *gaSettings) error {
		s.rng = rand.New(rand.NewSource(seed))
		return nil
	}
}

// WithElitism sets the fraction of the population carried over unchanged.
func WithElitism(fraction float64) Option {
	return func(s *gaSettings) error {
		if err := ValidateRate("elitism", fraction); err != nil {
			return err
		}
		s.elitism = fraction
		return nil
	}
}

// WithWorkers scores the population on n goroutines. n <= 1 scores inline.
func WithWorkers(n int) Option {
	return func(s *gaSettings) error {
		s.workers = n
		return nil
	}
}

// GeneticAlgorithm is a generational GA over candidates of type C.
//
// Parameters may be changed between Step calls from any goroutine; a Step
// holds the engine lock for its whole duration and therefore runs on one
// consistent parameter snapshot.
type GeneticAlgorithm[C Candidate[C]] struct {
	mu sync.RWMutex

	population []C
	scores     []float64
	params     GAParams
	generation int

	rng  *rand.Rand
	pool *pond.WorkerPool
}

// NewGeneticAlgorithm builds an engine that owns initial. The elitism
// fraction defaults to DefaultElitism.
func NewGeneticAlgorithm[C Candidate[C]](initial []C, crossoverRate, selectionTarget, mutationRate float64, opts ...Option) (*GeneticAlgorithm[C], error) {
	if err := ValidatePopulationSize(len(initial)); err != nil {
		return nil, err
	}

	settings := gaSettings{elitism: DefaultElitism}
	for _, o := range opts {
		if err := o(&settings); err != nil {
			return nil, err
		}
	}
	if settings.rng == nil {
		settings.rng = rand.New(rand.NewSource(rand.Int63()))
	}

	params := GAParams{
		CrossoverRate:   crossoverRate,
		MutationRate:    mutationRate,
		Elitism:         settings.elitism,
		SelectionTarget: selectionTarget,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ga := &GeneticAlgorithm[C]{
		population: append([]C(nil), initial...),
		scores:     make([]float64, len(initial)),
		params:     params,
		rng:        settings.rng,
	}
	if settings.workers > 1 {
		ga.pool = pond.New(settings.workers, len(initial))
	}
	ga.rescore()

	slog.Debug("Genetic algorithm created",
		"population", len(initial),
		"crossover_rate", crossoverRate,
		"mutation_rate", mutationRate,
		"elitism", settings.elitism,
		"selection_target", selectionTarget,
		"workers", settings.workers,
	)
	return ga, nil
}

// Close releases the scoring worker pool, if any.
func (ga *GeneticAlgorithm[C]) Close() {
	if ga.pool != nil {
		ga.pool.StopAndWait()
	}
}

// SetMutationRate sets the per-gene mutation probability.
func (ga *GeneticAlgorithm[C]) SetMutationRate(rate float64) error {
	if err := ValidateRate("mutation_rate", rate); err != nil {
		return err
	}
	ga.mu.Lock()
	defer ga.mu.Unlock()
	ga.params.MutationRate = rate
	return nil
}

// SetElitismTarget sets the fraction of the population kept as elites.
func (ga *GeneticAlgorithm[C]) SetElitismTarget(fraction float64) error {
	if err := ValidateRate("elitism", fraction); err != nil {
		return err
	}
	ga.mu.Lock()
	defer ga.mu.Unlock()
	ga.params.Elitism = fraction
	return nil
}

// SetSelectionTarget sets the pressure knob read by Tournament and Rank.
func (ga *GeneticAlgorithm[C]) SetSelectionTarget(target float64) error {
	if err := ValidateRate("selection_target", target); err != nil {
		return err
	}
	ga.mu.Lock()
	defer ga.mu.Unlock()
	ga.params.SelectionTarget = target
	return nil
}

// SetCrossoverRate sets the probability that a child recombines its parents.
func (ga *GeneticAlgorithm[C]) SetCrossoverRate(rate float64) error {
	if err := ValidateRate("crossover_rate", rate); err != nil {
		return err
	}
	ga.mu.Lock()
	defer ga.mu.Unlock()
	ga.params.CrossoverRate = rate
	return nil
}

// Params returns the current parameter snapshot.
func (ga *GeneticAlgorithm[C]) Params() GAParams {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	return ga.params
}

// EliteCount is round(elitism * size).
func EliteCount(elitism float64, size int) int {
	k := int(math.Round(elitism * float64(size)))
	if k > size {
		k = size
	}
	return k
}

// Step advances one generation: score, keep elites, breed the rest, replace.
func (ga *GeneticAlgorithm[C]) Step(method SelectionMethod) error {
	ga.mu.Lock()
	defer ga.mu.Unlock()

	params := ga.params
	ga.rescore()

	sel, err := newSelector(method, ga.scores, params.SelectionTarget)
	if err != nil {
		return err
	}

	n := len(ga.population)
	next := make([]C, 0, n)

	// Elites in descending fitness, ties kept in population order.
	k := EliteCount(params.Elitism, n)
	if k > 0 {
		ranked := make([]int, n)
		for i := range ranked {
			ranked[i] = i
		}
		sort.SliceStable(ranked, func(a, b int) bool {
			return ga.scores[ranked[a]] > ga.scores[ranked[b]]
		})
		for _, idx := range ranked[:k] {
			next = append(next, ga.population[idx].Clone())
		}
	}

	for len(next) < n {
		a := ga.population[sel.pick(ga.rng)]
		b := ga.population[sel.pick(ga.rng)]
		child := a.Crossover(b, params.CrossoverRate, ga.rng)
		child.Mutate(params.MutationRate, ga.rng)
		next = append(next, child)
	}

	ga.population = next
	ga.generation++
	ga.rescore()

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		stats := Summarize(ga.generation, ga.scores)
		slog.Debug("Generation complete",
			"generation", ga.generation,
			"selection", method.String(),
			"elites", k,
			"best_fitness", stats.Best,
			"mean_fitness", stats.Mean,
			"stddev_fitness", stats.StdDev,
		)
	}
	return nil
}

// rescore refreshes the cached scores. Callers hold ga.mu.
func (ga *GeneticAlgorithm[C]) rescore() {
	if ga.pool == nil {
		for i, c := range ga.population {
			ga.scores[i] = c.Fitness()
		}
		return
	}

	// Each task owns exactly one slot of scores and one population member.
	group := ga.pool.Group()
	for i := range ga.population {
		group.Submit(func() {
			ga.scores[i] = ga.population[i].Fitness()
		})
	}
	group.Wait()
}

// Best returns a copy of the fittest candidate, first occurrence on ties.
func (ga *GeneticAlgorithm[C]) Best() C {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	return ga.population[bestIndex(ga.scores)].Clone()
}

// BestFitness returns the score of Best without copying it.
func (ga *GeneticAlgorithm[C]) BestFitness() float64 {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	return ga.scores[bestIndex(ga.scores)]
}

// Population returns copies of every member in population order.
func (ga *GeneticAlgorithm[C]) Population() []C {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	out := make([]C, len(ga.population))
	for i, c := range ga.population {
		out[i] = c.Clone()
	}
	return out
}

// Scores returns a copy of the cached fitness values.
func (ga *GeneticAlgorithm[C]) Scores() []float64 {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	return append([]float64(nil), ga.scores...)
}

// Stats summarizes the current population.
func (ga *GeneticAlgorithm[C]) Stats() Stats {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	return Summarize(ga.generation, ga.scores)
}

// Generation is the number of completed Step calls.
func (ga *GeneticAlgorithm[C]) Generation() int {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	return ga.generation
}

// Size is the constant population size.
func (ga *GeneticAlgorithm[C]) Size() int {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	return len(ga.population)
}
