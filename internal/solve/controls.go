package solve

import (
	"log/slog"
	"math"
	"sync"

	"github.com/cwbudde/evotsp/internal/opt"
	"github.com/cwbudde/evotsp/internal/tsp"
)

// ControlUpdate carries knob changes for a running job. Nil fields are left
// unchanged.
type ControlUpdate struct {
	MutationRate    *float64 `json:"mutationRate,omitempty"`
	CrossoverRate   *float64 `json:"crossoverRate,omitempty"`
	SelectionTarget *float64 `json:"selectionTarget,omitempty"`
	Elitism         *float64 `json:"elitism,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Cooling         *float64 `json:"cooling,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ControlUpdate) IsEmpty() bool {
	return u.MutationRate == nil && u.CrossoverRate == nil && u.SelectionTarget == nil &&
		u.Elitism == nil && u.Temperature == nil && u.Cooling == nil
}

// Validate checks every set field. Nothing is applied if any field is invalid.
func (u ControlUpdate) Validate() error {
	rates := []struct {
		name string
		v    *float64
	}{
		{"mutation_rate", u.MutationRate},
		{"crossover_rate", u.CrossoverRate},
		{"selection_target", u.SelectionTarget},
		{"elitism", u.Elitism},
	}
	for _, r := range rates {
		if r.v == nil {
			continue
		}
		if err := opt.ValidateRate(r.name, *r.v); err != nil {
			return err
		}
	}
	if t := u.Temperature; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0) || *t < 0) {
		return &opt.ConfigError{Param: "temperature", Value: *t, Reason: "must be finite and non-negative"}
	}
	if c := u.Cooling; c != nil && (math.IsNaN(*c) || *c <= 0 || *c >= 1) {
		return &opt.ConfigError{Param: "cooling", Value: *c, Reason: "must be in (0, 1)"}
	}
	return nil
}

// merge overlays the set fields of o onto u.
func (u *ControlUpdate) merge(o ControlUpdate) {
	if o.MutationRate != nil {
		u.MutationRate = o.MutationRate
	}
	if o.CrossoverRate != nil {
		u.CrossoverRate = o.CrossoverRate
	}
	if o.SelectionTarget != nil {
		u.SelectionTarget = o.SelectionTarget
	}
	if o.Elitism != nil {
		u.Elitism = o.Elitism
	}
	if o.Temperature != nil {
		u.Temperature = o.Temperature
	}
	if o.Cooling != nil {
		u.Cooling = o.Cooling
	}
}

// Controls queues knob changes from other goroutines. Queued values are
// validated when submitted and applied before the next engine step, so a
// generation always runs on one consistent parameter set.
type Controls struct {
	mu      sync.Mutex
	pending ControlUpdate
}

// NewControls returns an empty control queue.
func NewControls() *Controls {
	return &Controls{}
}

// Update validates u and queues it. Later updates override earlier ones
// field by field.
func (c *Controls) Update(u ControlUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.merge(u)
	return nil
}

// SetMutationRate queues a new per-gene mutation probability.
func (c *Controls) SetMutationRate(rate float64) error {
	return c.Update(ControlUpdate{MutationRate: &rate})
}

// SetSelectionTarget queues a new selection pressure.
func (c *Controls) SetSelectionTarget(target float64) error {
	return c.Update(ControlUpdate{SelectionTarget: &target})
}

// SetElitism queues a new elitism fraction.
func (c *Controls) SetElitism(fraction float64) error {
	return c.Update(ControlUpdate{Elitism: &fraction})
}

// Pending returns the queued, not yet applied, update.
func (c *Controls) Pending() ControlUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controls) take() (ControlUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.pending
	c.pending = ControlUpdate{}
	return u, !u.IsEmpty()
}

// applyGA drains the queue into ga. SA-only fields are dropped.
func (c *Controls) applyGA(ga *opt.GeneticAlgorithm[*tsp.Tour]) error {
	u, ok := c.take()
	if !ok {
		return nil
	}
	if u.MutationRate != nil {
		if err := ga.SetMutationRate(*u.MutationRate); err != nil {
			return err
		}
	}
	if u.CrossoverRate != nil {
		if err := ga.SetCrossoverRate(*u.CrossoverRate); err != nil {
			return err
		}
	}
	if u.SelectionTarget != nil {
		if err := ga.SetSelectionTarget(*u.SelectionTarget); err != nil {
			return err
		}
	}
	if u.Elitism != nil {
		if err := ga.SetElitismTarget(*u.Elitism); err != nil {
			return err
		}
	}
	slog.Info("Applied control update", "generation", ga.Generation(), "params", ga.Params())
	return nil
}

// applySA drains the queue into sa. GA-only fields are dropped.
func (c *Controls) applySA(sa *opt.SimulatedAnnealing[*tsp.Tour]) error {
	u, ok := c.take()
	if !ok {
		return nil
	}
	if u.Temperature != nil {
		if err := sa.SetTemperature(*u.Temperature); err != nil {
			return err
		}
	}
	if u.Cooling != nil {
		if err := sa.SetCoolingFactor(*u.Cooling); err != nil {
			return err
		}
	}
	slog.Info("Applied control update", "iteration", sa.Iteration(), "temperature", sa.Temperature())
	return nil
}
