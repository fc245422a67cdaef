package solve

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cwbudde/evotsp/internal/opt"
	"github.com/cwbudde/evotsp/internal/tsp"
)

// Steps used to calibrate the SA starting temperature.
const (
	calibrationSamples    = 100
	calibrationAcceptance = 0.8
)

// Progress is a snapshot reported after an engine step.
type Progress struct {
	Iteration       int           `json:"iteration"`
	BestLength      float64       `json:"bestLength"`
	BestFitness     float64       `json:"bestFitness"`
	BestOrder       []int         `json:"bestOrder"`
	InitialLength   float64       `json:"initialLength"`
	Stats           *opt.Stats    `json:"stats,omitempty"`
	Params          *opt.GAParams `json:"params,omitempty"`
	Temperature     float64       `json:"temperature,omitempty"`
	AcceptanceRatio float64       `json:"acceptanceRatio,omitempty"`
}

// ProgressFunc receives progress snapshots on the optimizing goroutine.
type ProgressFunc func(Progress)

// Result holds the output of an optimization run
type Result struct {
	Mode          Mode          `json:"mode"`
	Seed          int64         `json:"seed"`
	BestOrder     []int         `json:"bestOrder"`
	BestLength    float64       `json:"bestLength"`
	BestFitness   float64       `json:"bestFitness"`
	InitialLength float64       `json:"initialLength"`
	Iterations    int           `json:"iterations"`
	Converged     bool          `json:"converged"`
	Cancelled     bool          `json:"cancelled"`
	Elapsed       time.Duration `json:"elapsed"`

	Tour *tsp.Tour `json:"-"`
}

// Option configures a single Optimize call.
type Option func(*runOptions)

type runOptions struct {
	progress    ProgressFunc
	reportEvery int
	controls    *Controls
	warmStart   []int
}

// WithProgress reports progress every `every` steps (and after the last one).
func WithProgress(fn ProgressFunc, every int) Option {
	return func(o *runOptions) {
		o.progress = fn
		if every > 0 {
			o.reportEvery = every
		}
	}
}

// WithControls applies queued knob updates between steps.
func WithControls(c *Controls) Option {
	return func(o *runOptions) {
		o.controls = c
	}
}

// WithWarmStart seeds the search with a known tour, e.g. from a checkpoint.
func WithWarmStart(order []int) Option {
	return func(o *runOptions) {
		o.warmStart = append([]int(nil), order...)
	}
}

// Optimize searches for a short closed tour through cities. It stops after
// p.Generations steps, on convergence, or when ctx is done; in every case it
// returns the best tour found.
func Optimize(ctx context.Context, cities []tsp.Point, p Params, opts ...Option) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := tsp.ValidateCities(cities); err != nil {
		return nil, err
	}

	o := runOptions{reportEvery: 1}
	for _, fn := range opts {
		fn(&o)
	}

	var warm *tsp.Tour
	if o.warmStart != nil {
		t, err := tsp.NewTour(cities, o.warmStart)
		if err != nil {
			return nil, fmt.Errorf("invalid warm start: %w", err)
		}
		warm = t
	}

	if p.Mode == "" {
		p.Mode = ModeGA
	}
	if p.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(p.Seed))

	slog.Info("Starting optimization",
		"mode", p.Mode,
		"cities", len(cities),
		"generations", p.Generations,
		"pop_size", p.PopSize,
		"seed", p.Seed,
		"warm_start", warm != nil,
	)

	r := &runner{ctx: ctx, cities: cities, params: p, opts: o, rng: rng, warm: warm}
	start := time.Now()

	var (
		res *Result
		err error
	)
	switch p.Mode {
	case ModeGA:
		res, err = r.runGA()
	case ModeSA:
		res, err = r.runSA()
	case ModeMayfly:
		res, err = r.runMayfly()
	}
	if err != nil {
		return nil, err
	}

	res.Mode = p.Mode
	res.Seed = p.Seed
	res.Elapsed = time.Since(start)
	res.BestOrder = res.Tour.Order()
	res.BestLength = res.Tour.Length()
	res.BestFitness = res.Tour.Fitness()

	slog.Info("Optimization complete",
		"mode", res.Mode,
		"elapsed", res.Elapsed,
		"iterations", res.Iterations,
		"initial_length", res.InitialLength,
		"best_length", res.BestLength,
		"converged", res.Converged,
		"cancelled", res.Cancelled,
	)
	return res, nil
}

type runner struct {
	ctx    context.Context
	cities []tsp.Point
	params Params
	opts   runOptions
	rng    *rand.Rand
	warm   *tsp.Tour
}

func (r *runner) shouldReport(iter, last int) bool {
	return r.opts.progress != nil && (iter%r.opts.reportEvery == 0 || iter == last)
}

func (r *runner) tracker() *ConvergenceTracker {
	return NewConvergenceTracker(ConvergenceConfig{
		Patience:  r.params.Patience,
		Threshold: r.params.Threshold,
	})
}

func (r *runner) runGA() (*Result, error) {
	p := r.params
	pop, err := opt.NewPopulation(p.PopSize, tsp.Generator(r.cities), r.rng)
	if err != nil {
		return nil, err
	}
	if r.warm != nil {
		pop[0] = r.warm
	}

	ga, err := opt.NewGeneticAlgorithm(pop, p.CrossoverRate, p.SelectionTarget, p.MutationRate,
		opt.WithRand(r.rng),
		opt.WithElitism(p.Elitism),
		opt.WithWorkers(p.Workers),
	)
	if err != nil {
		return nil, err
	}
	defer ga.Close()

	method := p.SelectionMethod()
	res := &Result{InitialLength: ga.Best().Length()}
	tracker := r.tracker()

	for gen := 1; gen <= p.Generations; gen++ {
		if r.ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if r.opts.controls != nil {
			if err := r.opts.controls.applyGA(ga); err != nil {
				return nil, err
			}
		}
		if err := ga.Step(method); err != nil {
			return nil, fmt.Errorf("generation %d: %w", gen, err)
		}
		res.Iterations = gen

		best := ga.Best()
		converged := tracker.Update(best.Length())
		if r.opts.progress != nil && (r.shouldReport(gen, p.Generations) || converged) {
			stats := ga.Stats()
			params := ga.Params()
			r.opts.progress(Progress{
				Iteration:     gen,
				BestLength:    best.Length(),
				InitialLength: res.InitialLength,
				BestFitness:   best.Fitness(),
				BestOrder:     best.Order(),
				Stats:         &stats,
				Params:        &params,
			})
		}
		if converged {
			res.Converged = true
			break
		}
	}

	res.Tour = ga.Best()
	return res, nil
}

func (r *runner) runSA() (*Result, error) {
	p := r.params
	start := r.warm
	if start == nil {
		t, err := tsp.RandomTour(r.cities, r.rng)
		if err != nil {
			return nil, err
		}
		start = t
	}

	neighborRate := p.NeighborRate
	if neighborRate == 0 {
		neighborRate = tsp.NeighborRate(len(r.cities))
	}
	temperature := p.Temperature
	if temperature == 0 {
		temperature = opt.CalibrateTemperature(start, neighborRate, calibrationSamples, calibrationAcceptance, r.rng)
	}

	sa, err := opt.NewSimulatedAnnealing(start, temperature, p.Cooling,
		opt.WithAnnealRand(r.rng),
		opt.WithNeighborRate(neighborRate),
	)
	if err != nil {
		return nil, err
	}

	res := &Result{InitialLength: start.Length()}
	tracker := r.tracker()

	for iter := 1; iter <= p.Generations; iter++ {
		if r.ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if r.opts.controls != nil {
			if err := r.opts.controls.applySA(sa); err != nil {
				return nil, err
			}
		}
		sa.Step()
		res.Iterations = iter

		converged := tracker.Update(tsp.LengthFromFitness(sa.BestFitness()))
		if r.opts.progress != nil && (r.shouldReport(iter, p.Generations) || converged) {
			best := sa.Best()
			r.opts.progress(Progress{
				Iteration:       iter,
				BestLength:      best.Length(),
				InitialLength:   res.InitialLength,
				BestFitness:     best.Fitness(),
				BestOrder:       best.Order(),
				Temperature:     sa.Temperature(),
				AcceptanceRatio: sa.AcceptanceRatio(),
			})
		}
		if converged {
			res.Converged = true
			break
		}
	}

	res.Tour = sa.Best()
	return res, nil
}

// runMayfly optimizes random keys in [0, 1]^n. The swarm runs to completion
// in one call, so cancellation is only observed before it starts.
func (r *runner) runMayfly() (*Result, error) {
	p := r.params
	n := len(r.cities)
	if r.warm != nil {
		slog.Warn("Warm start is ignored in mayfly mode")
	}

	initial, err := tsp.RandomTour(r.cities, r.rng)
	if err != nil {
		return nil, err
	}
	res := &Result{InitialLength: initial.Length()}
	if r.ctx.Err() != nil {
		res.Cancelled = true
		res.Tour = initial
		return res, nil
	}

	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := range upper {
		upper[i] = 1
	}

	optimizer := opt.NewMayfly(p.Generations, p.PopSize, r.rng.Int63())
	keys, _ := optimizer.Run(tsp.KeysObjective(r.cities), lower, upper, n)

	tour, err := tsp.TourFromKeys(r.cities, keys)
	if err != nil {
		return nil, err
	}
	if initial.Length() < tour.Length() {
		tour = initial
	}

	res.Iterations = p.Generations
	res.Tour = tour
	if r.opts.progress != nil {
		r.opts.progress(Progress{
			Iteration:     res.Iterations,
			BestLength:    tour.Length(),
			InitialLength: res.InitialLength,
			BestFitness:   tour.Fitness(),
			BestOrder:     tour.Order(),
		})
	}
	return res, nil
}
