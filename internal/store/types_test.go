package store

import (
	"errors"
	"testing"
	"time"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/tsp"
)

func testConfig() JobConfig {
	p := solve.DefaultParams()
	p.Generations = 100
	p.PopSize = 20
	return JobConfig{
		Cities: []tsp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}},
		Params: p,
	}
}

func validCheckpoint() *Checkpoint {
	return NewCheckpoint("job-1", []int{0, 1, 2, 3}, 4, 4.83, 50, testConfig())
}

func TestCheckpoint_Validate(t *testing.T) {
	if err := validCheckpoint().Validate(); err != nil {
		t.Fatalf("Expected valid checkpoint, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Checkpoint)
		field  string
	}{
		{"empty job id", func(c *Checkpoint) { c.JobID = "" }, "JobID"},
		{"empty order", func(c *Checkpoint) { c.BestOrder = nil }, "BestOrder"},
		{"negative length", func(c *Checkpoint) { c.BestLength = -1 }, "BestLength"},
		{"negative iteration", func(c *Checkpoint) { c.Iteration = -1 }, "Iteration"},
		{"zero timestamp", func(c *Checkpoint) { c.Timestamp = time.Time{} }, "Timestamp"},
		{"too few cities", func(c *Checkpoint) { c.Config.Cities = c.Config.Cities[:2] }, "Config.Cities"},
		{"bad params", func(c *Checkpoint) { c.Config.MutationRate = 3 }, "Config"},
		{"short order", func(c *Checkpoint) { c.BestOrder = []int{0, 1, 2} }, "BestOrder"},
		{"not a permutation", func(c *Checkpoint) { c.BestOrder = []int{0, 1, 1, 3} }, "BestOrder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCheckpoint()
			tt.mutate(c)

			err := c.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestCheckpoint_IsCompatible(t *testing.T) {
	c := validCheckpoint()
	if err := c.IsCompatible(testConfig()); err != nil {
		t.Fatalf("Expected compatible config, got %v", err)
	}

	// Search knobs may change between runs.
	tuned := testConfig()
	tuned.MutationRate = 0.2
	tuned.Generations = 5000
	if err := c.IsCompatible(tuned); err != nil {
		t.Errorf("Expected tuned config to be compatible, got %v", err)
	}

	other := testConfig()
	other.Mode = solve.ModeSA
	var cerr *CompatibilityError
	if err := c.IsCompatible(other); !errors.As(err, &cerr) || cerr.Field != "Mode" {
		t.Errorf("Expected Mode compatibility error, got %v", err)
	}

	moved := testConfig()
	moved.Cities[2] = tsp.Point{X: 2, Y: 2}
	if err := c.IsCompatible(moved); !errors.As(err, &cerr) || cerr.Field != "Cities[2]" {
		t.Errorf("Expected Cities[2] compatibility error, got %v", err)
	}

	fewer := testConfig()
	fewer.Cities = fewer.Cities[:3]
	if err := c.IsCompatible(fewer); !errors.As(err, &cerr) || cerr.Field != "Cities" {
		t.Errorf("Expected Cities compatibility error, got %v", err)
	}
}

func TestCheckpoint_TourAndInfo(t *testing.T) {
	c := validCheckpoint()
	tour, err := c.Tour()
	if err != nil {
		t.Fatalf("Tour failed: %v", err)
	}
	if tour.Length() != 4 {
		t.Errorf("Expected length 4, got %v", tour.Length())
	}

	info := c.ToInfo()
	if info.JobID != "job-1" || info.Cities != 4 || info.Mode != solve.ModeGA || info.Iteration != 50 {
		t.Errorf("Unexpected info: %+v", info)
	}
}

func TestJobConfig_Validate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	c := testConfig()
	c.Cities = []tsp.Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}
	if err := c.Validate(); !errors.Is(err, tsp.ErrTooFewCities) {
		t.Errorf("Expected ErrTooFewCities, got %v", err)
	}

	c = testConfig()
	c.CheckpointInterval = -5
	if err := c.Validate(); err == nil {
		t.Error("Expected error for negative checkpoint interval")
	}
}
