package opt

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the fitness distribution of one population.
type Stats struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Worst      float64 `json:"worst"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stdDev"`
}

// Summarize computes population statistics over scores.
func Summarize(generation int, scores []float64) Stats {
	if len(scores) == 0 {
		return Stats{Generation: generation}
	}

	s := Stats{
		Generation: generation,
		Best:       floats.Max(scores),
		Worst:      floats.Min(scores),
	}
	if len(scores) == 1 {
		s.Mean = scores[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(scores, nil)
	return s
}

// bestIndex returns the first index holding the maximum score.
func bestIndex(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
