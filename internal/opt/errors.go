package opt

import (
	"fmt"
	"math"
)

// ErrInvalidConfig matches every *ConfigError.
// Use errors.Is(err, ErrInvalidConfig) to check for this error.
var ErrInvalidConfig = &ConfigError{}

// ConfigError reports a control parameter outside its valid range.
// It is returned by the call that set the value; values are never clamped.
type ConfigError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Param == "" {
		return "invalid configuration"
	}
	return fmt.Sprintf("invalid configuration: %s=%v %s", e.Param, e.Value, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// ValidateRate checks that a probability or fraction lies in [0, 1].
func ValidateRate(param string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ConfigError{Param: param, Value: v, Reason: "must be in [0, 1]"}
	}
	return nil
}

// ValidatePopulationSize rejects empty populations.
func ValidatePopulationSize(n int) error {
	if n <= 0 {
		return &ConfigError{Param: "population_size", Value: float64(n), Reason: "must be positive"}
	}
	return nil
}
