package main

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/evotsp/internal/solve"
)

func TestSummarizeBench(t *testing.T) {
	results := []*solve.Result{
		{BestLength: 12, Elapsed: 3 * time.Second},
		{BestLength: 10, Elapsed: time.Second},
		{BestLength: 11, Elapsed: 2 * time.Second},
	}

	s := summarizeBench(solve.ModeGA, results)

	if s.Runs != 3 || s.Best != 10 || s.Worst != 12 {
		t.Errorf("unexpected extremes: %+v", s)
	}
	if s.Mean != 11 || s.Median != 11 {
		t.Errorf("mean/median = %v/%v, want 11/11", s.Mean, s.Median)
	}
	if math.Abs(s.StdDev-1) > 1e-12 {
		t.Errorf("stddev = %v, want 1", s.StdDev)
	}
	if s.Elapsed != 2*time.Second {
		t.Errorf("elapsed = %v, want 2s", s.Elapsed)
	}

	if empty := summarizeBench(solve.ModeSA, nil); empty.Runs != 0 || empty.Best != 0 {
		t.Errorf("empty summary should be zero, got %+v", empty)
	}
}

func TestPrintBench(t *testing.T) {
	var out bytes.Buffer
	printBench(&out, 1500, []benchSummary{
		{Mode: solve.ModeGA, Runs: 2, Best: 1, Mean: 1.5, Median: 1.5, Worst: 2},
		{Mode: solve.ModeSA, Runs: 2, Best: 0.9, Mean: 1, Median: 1, Worst: 1.1},
	})

	got := out.String()
	for _, want := range []string{"1,500 cities", "MODE", "ga", "sa", "0.9000"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}
