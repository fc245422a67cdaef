// Package solve drives the GA, SA and mayfly engines over a TSP instance:
// parameter validation, the step loop, live control updates, convergence
// detection and progress reporting.
package solve

import (
	"fmt"
	"math"

	"github.com/cwbudde/evotsp/internal/opt"
)

// Mode selects the search strategy.
type Mode string

const (
	ModeGA     Mode = "ga"
	ModeSA     Mode = "sa"
	ModeMayfly Mode = "mayfly"
)

// ParseMode maps a CLI/API name to a Mode. The empty string is ModeGA.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeGA:
		return ModeGA, nil
	case ModeSA, ModeMayfly:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", opt.ErrInvalidConfig, s)
	}
}

// Params is the full configuration of one run.
type Params struct {
	Mode        Mode  `json:"mode" yaml:"mode"`
	Generations int   `json:"generations" yaml:"generations"`
	PopSize     int   `json:"popSize" yaml:"pop_size"`
	Seed        int64 `json:"seed" yaml:"seed"`

	// GA knobs.
	CrossoverRate   float64 `json:"crossoverRate" yaml:"crossover_rate"`
	MutationRate    float64 `json:"mutationRate" yaml:"mutation_rate"`
	Elitism         float64 `json:"elitism" yaml:"elitism"`
	SelectionTarget float64 `json:"selectionTarget" yaml:"selection_target"`
	Selection       string  `json:"selection" yaml:"selection"`
	Workers         int     `json:"workers,omitempty" yaml:"workers"`

	// SA knobs. Temperature 0 calibrates from the starting tour;
	// NeighborRate 0 means 2/n.
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	Cooling      float64 `json:"cooling" yaml:"cooling"`
	NeighborRate float64 `json:"neighborRate" yaml:"neighbor_rate"`

	// Early stopping. Patience 0 disables it.
	Patience  int     `json:"patience" yaml:"patience"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// DefaultParams returns the defaults used by the CLI and the server.
func DefaultParams() Params {
	return Params{
		Mode:            ModeGA,
		Generations:     500,
		PopSize:         100,
		Seed:            42,
		CrossoverRate:   0.7,
		MutationRate:    0.01,
		Elitism:         opt.DefaultElitism,
		SelectionTarget: 0.8,
		Selection:       opt.RouletteWheel.String(),
		Cooling:         0.995,
		Threshold:       0.001,
	}
}

// Validate reports the first invalid field as an opt.ConfigError.
func (p Params) Validate() error {
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return err
	}
	if p.Generations <= 0 {
		return &opt.ConfigError{Param: "generations", Value: float64(p.Generations), Reason: "must be positive"}
	}
	if err := opt.ValidatePopulationSize(p.PopSize); err != nil {
		return err
	}

	rates := []struct {
		name string
		v    float64
	}{
		{"crossover_rate", p.CrossoverRate},
		{"mutation_rate", p.MutationRate},
		{"elitism", p.Elitism},
		{"selection_target", p.SelectionTarget},
		{"neighbor_rate", p.NeighborRate},
	}
	for _, r := range rates {
		if err := opt.ValidateRate(r.name, r.v); err != nil {
			return err
		}
	}
	if _, err := opt.ParseSelectionMethod(p.Selection); err != nil {
		return fmt.Errorf("%w: %v", opt.ErrInvalidConfig, err)
	}

	if math.IsNaN(p.Temperature) || math.IsInf(p.Temperature, 0) || p.Temperature < 0 {
		return &opt.ConfigError{Param: "temperature", Value: p.Temperature, Reason: "must be finite and non-negative"}
	}
	if p.Mode == ModeSA && (math.IsNaN(p.Cooling) || p.Cooling <= 0 || p.Cooling >= 1) {
		return &opt.ConfigError{Param: "cooling", Value: p.Cooling, Reason: "must be in (0, 1)"}
	}
	if p.Workers < 0 {
		return &opt.ConfigError{Param: "workers", Value: float64(p.Workers), Reason: "must be non-negative"}
	}
	if p.Patience < 0 {
		return &opt.ConfigError{Param: "patience", Value: float64(p.Patience), Reason: "must be non-negative"}
	}
	if math.IsNaN(p.Threshold) || p.Threshold < 0 {
		return &opt.ConfigError{Param: "threshold", Value: p.Threshold, Reason: "must be non-negative"}
	}
	return nil
}

// SelectionMethod parses Selection. Call Validate first.
func (p Params) SelectionMethod() opt.SelectionMethod {
	m, _ := opt.ParseSelectionMethod(p.Selection)
	return m
}
