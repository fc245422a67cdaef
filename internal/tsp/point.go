// Package tsp is the Euclidean travelling salesman representation used by
// the optimizers: city points, tours as permutations, and city loaders.
package tsp

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTooFewCities is returned when a city set has fewer than MinCities
	// distinct points.
	ErrTooFewCities = errors.New("tsp: at least 3 distinct cities required")

	// ErrInvalidOrder is returned when a tour order is not a permutation of
	// the city indices.
	ErrInvalidOrder = errors.New("tsp: order is not a permutation of the cities")

	// ErrNonFiniteCoordinate is returned for NaN or infinite coordinates.
	ErrNonFiniteCoordinate = errors.New("tsp: non-finite coordinate")
)

// MinCities is the smallest number of distinct cities a tour is built over.
const MinCities = 3

// Point is a city position.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance is the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// TourLength is the length of the closed cycle through points in order,
// including the edge from the last point back to the first. Fewer than two
// points give 0.
func TourLength(points []Point) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n-1; i++ {
		sum += points[i].Distance(points[i+1])
	}
	return sum + points[n-1].Distance(points[0])
}

// CountDistinct returns the number of distinct points.
func CountDistinct(points []Point) int {
	seen := make(map[Point]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// ValidateCities checks that cities can form a meaningful tour.
func ValidateCities(cities []Point) error {
	for i, c := range cities {
		if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsInf(c.X, 0) || math.IsInf(c.Y, 0) {
			return fmt.Errorf("city %d: %w", i, ErrNonFiniteCoordinate)
		}
	}
	if d := CountDistinct(cities); d < MinCities {
		return fmt.Errorf("%w (got %d)", ErrTooFewCities, d)
	}
	return nil
}

// FitnessFromLength maps a tour length to a fitness in (0, 1]; shorter tours
// score strictly higher.
func FitnessFromLength(length float64) float64 {
	return 1 / (1 + length)
}

// LengthFromFitness inverts FitnessFromLength.
func LengthFromFitness(fitness float64) float64 {
	if fitness <= 0 {
		return math.Inf(1)
	}
	return 1/fitness - 1
}
