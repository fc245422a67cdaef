package main

import (
	"encoding/json"
	"log/slog"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/spf13/cobra"
)

// paramFlags binds the search parameters shared by run, bench and resume.
// Only flags the user set override a config file or checkpoint.
type paramFlags struct {
	p solve.Params
}

func addParamFlags(cmd *cobra.Command) *paramFlags {
	pf := &paramFlags{p: solve.DefaultParams()}
	fs := cmd.Flags()

	fs.StringVar((*string)(&pf.p.Mode), "mode", string(pf.p.Mode), "Search mode: ga, sa, mayfly")
	fs.IntVar(&pf.p.Generations, "generations", pf.p.Generations, "Generations (GA, mayfly) or moves (SA)")
	fs.IntVar(&pf.p.PopSize, "pop", pf.p.PopSize, "Population size")
	fs.Int64Var(&pf.p.Seed, "seed", pf.p.Seed, "Random seed (0 = time based)")

	fs.Float64Var(&pf.p.CrossoverRate, "crossover", pf.p.CrossoverRate, "Crossover rate")
	fs.Float64Var(&pf.p.MutationRate, "mutation", pf.p.MutationRate, "Per-city mutation rate")
	fs.Float64Var(&pf.p.Elitism, "elitism", pf.p.Elitism, "Fraction of the population kept unchanged")
	fs.Float64Var(&pf.p.SelectionTarget, "selection-target", pf.p.SelectionTarget, "Selection pressure for tournament and rank")
	fs.StringVar(&pf.p.Selection, "selection", pf.p.Selection, "Selection method: roulette, tournament, rank")
	fs.IntVar(&pf.p.Workers, "workers", pf.p.Workers, "Goroutines scoring the population (0 = inline)")

	fs.Float64Var(&pf.p.Temperature, "temperature", pf.p.Temperature, "SA start temperature (0 = calibrate)")
	fs.Float64Var(&pf.p.Cooling, "cooling", pf.p.Cooling, "SA geometric cooling factor")
	fs.Float64Var(&pf.p.NeighborRate, "neighbor-rate", pf.p.NeighborRate, "SA neighbor mutation rate (0 = 2/n)")

	fs.IntVar(&pf.p.Patience, "patience", pf.p.Patience, "Stop after this many iterations without improvement (0 = never)")
	fs.Float64Var(&pf.p.Threshold, "threshold", pf.p.Threshold, "Relative improvement that resets patience")
	return pf
}

// paramFields maps each flag to its JSON key and how to copy it.
var paramFields = []struct {
	flag, key string
	copy      func(dst, src *solve.Params)
}{
	{"mode", "mode", func(d, s *solve.Params) { d.Mode = s.Mode }},
	{"generations", "generations", func(d, s *solve.Params) { d.Generations = s.Generations }},
	{"pop", "popSize", func(d, s *solve.Params) { d.PopSize = s.PopSize }},
	{"seed", "seed", func(d, s *solve.Params) { d.Seed = s.Seed }},
	{"crossover", "crossoverRate", func(d, s *solve.Params) { d.CrossoverRate = s.CrossoverRate }},
	{"mutation", "mutationRate", func(d, s *solve.Params) { d.MutationRate = s.MutationRate }},
	{"elitism", "elitism", func(d, s *solve.Params) { d.Elitism = s.Elitism }},
	{"selection-target", "selectionTarget", func(d, s *solve.Params) { d.SelectionTarget = s.SelectionTarget }},
	{"selection", "selection", func(d, s *solve.Params) { d.Selection = s.Selection }},
	{"workers", "workers", func(d, s *solve.Params) { d.Workers = s.Workers }},
	{"temperature", "temperature", func(d, s *solve.Params) { d.Temperature = s.Temperature }},
	{"cooling", "cooling", func(d, s *solve.Params) { d.Cooling = s.Cooling }},
	{"neighbor-rate", "neighborRate", func(d, s *solve.Params) { d.NeighborRate = s.NeighborRate }},
	{"patience", "patience", func(d, s *solve.Params) { d.Patience = s.Patience }},
	{"threshold", "threshold", func(d, s *solve.Params) { d.Threshold = s.Threshold }},
}

// apply copies every flag the user set onto dst.
func (pf *paramFlags) apply(cmd *cobra.Command, dst *solve.Params) {
	for _, f := range paramFields {
		if cmd.Flags().Changed(f.flag) {
			f.copy(dst, &pf.p)
		}
	}
}

// changed returns the set flags keyed like the JSON API, for server requests.
func (pf *paramFlags) changed(cmd *cobra.Command) (map[string]any, error) {
	data, err := json.Marshal(pf.p)
	if err != nil {
		return nil, err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	out := make(map[string]any)
	for _, f := range paramFields {
		if cmd.Flags().Changed(f.flag) {
			out[f.key] = all[f.key]
		}
	}
	return out, nil
}

// progressLogger logs about twenty progress lines per run.
func progressLogger(total int) (solve.ProgressFunc, int) {
	every := total / 20
	if every < 1 {
		every = 1
	}
	return func(p solve.Progress) {
		attrs := []any{
			"iteration", p.Iteration,
			"best_length", p.BestLength,
			"initial_length", p.InitialLength,
		}
		if p.Stats != nil {
			attrs = append(attrs, "mean_fitness", p.Stats.Mean)
		}
		if p.Temperature > 0 {
			attrs = append(attrs, "temperature", p.Temperature, "acceptance", p.AcceptanceRatio)
		}
		slog.Info("Progress", attrs...)
	}, every
}
