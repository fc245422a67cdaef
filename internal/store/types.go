package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/tsp"
)

// JobConfig holds the configuration of an optimization job (checkpoint copy).
type JobConfig struct {
	Cities []tsp.Point `json:"cities" yaml:"cities"`

	solve.Params `yaml:",inline"`

	CheckpointInterval int `json:"checkpointInterval,omitempty" yaml:"checkpoint_interval"` // seconds, 0 = disabled
}

// Validate checks the search parameters and the city set.
func (c JobConfig) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if err := tsp.ValidateCities(c.Cities); err != nil {
		return err
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("checkpointInterval must be non-negative, got %d", c.CheckpointInterval)
	}
	return nil
}

// Checkpoint is the saved state of a job that can be resumed later.
//
// Only the best tour is kept, not the engine state. A resumed job starts a
// fresh population (or SA trajectory) warm-started from BestOrder, so its
// best length never gets worse but the run is not a bit-exact continuation.
type Checkpoint struct {
	JobID string `json:"jobId"`

	// BestOrder is the visiting order, a permutation of Config.Cities indices.
	BestOrder  []int   `json:"bestOrder"`
	BestLength float64 `json:"bestLength"`

	// InitialLength is the best length of the starting population.
	InitialLength float64 `json:"initialLength"`

	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`

	// Config is needed to validate resumes: the city set and mode must match.
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the tour data.
type CheckpointInfo struct {
	JobID      string     `json:"jobId"`
	BestLength float64    `json:"bestLength"`
	Iteration  int        `json:"iteration"`
	Timestamp  time.Time  `json:"timestamp"`
	Mode       solve.Mode `json:"mode"`
	Cities     int        `json:"cities"`

	// SizeBytes is the on-disk size of the job directory.
	SizeBytes int64 `json:"sizeBytes"`
}

// NewCheckpoint creates a checkpoint from job state.
func NewCheckpoint(jobID string, bestOrder []int, bestLength, initialLength float64, iteration int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:         jobID,
		BestOrder:     bestOrder,
		BestLength:    bestLength,
		InitialLength: initialLength,
		Iteration:     iteration,
		Timestamp:     time.Now(),
		Config:        config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:      c.JobID,
		BestLength: c.BestLength,
		Iteration:  c.Iteration,
		Timestamp:  c.Timestamp,
		Mode:       c.Config.Mode,
		Cities:     len(c.Config.Cities),
	}
}

// Tour rebuilds the best tour over the checkpointed cities.
func (c *Checkpoint) Tour() (*tsp.Tour, error) {
	return tsp.NewTour(c.Config.Cities, c.BestOrder)
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestOrder) == 0 {
		return &ValidationError{Field: "BestOrder", Reason: "cannot be empty"}
	}
	if c.BestLength < 0 {
		return &ValidationError{Field: "BestLength", Reason: "cannot be negative"}
	}
	if c.InitialLength < 0 {
		return &ValidationError{Field: "InitialLength", Reason: "cannot be negative"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if err := tsp.ValidateCities(c.Config.Cities); err != nil {
		return &ValidationError{Field: "Config.Cities", Reason: err.Error()}
	}
	if err := c.Config.Params.Validate(); err != nil {
		return &ValidationError{Field: "Config", Reason: err.Error()}
	}
	if len(c.BestOrder) != len(c.Config.Cities) {
		return &ValidationError{
			Field:  "BestOrder",
			Reason: fmt.Sprintf("length mismatch: expected %d indices, got %d", len(c.Config.Cities), len(c.BestOrder)),
		}
	}
	if _, err := c.Tour(); err != nil {
		return &ValidationError{Field: "BestOrder", Reason: "is not a permutation of the cities"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// The city set must be identical; the mode must match.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Mode != config.Mode {
		return &CompatibilityError{
			Field:    "Mode",
			Expected: string(c.Config.Mode),
			Actual:   string(config.Mode),
		}
	}
	if len(c.Config.Cities) != len(config.Cities) {
		return &CompatibilityError{
			Field:    "Cities",
			Expected: fmt.Sprintf("%d cities", len(c.Config.Cities)),
			Actual:   fmt.Sprintf("%d cities", len(config.Cities)),
		}
	}
	for i, p := range c.Config.Cities {
		if p != config.Cities[i] {
			return &CompatibilityError{
				Field:    fmt.Sprintf("Cities[%d]", i),
				Expected: p.String(),
				Actual:   config.Cities[i].String(),
			}
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
