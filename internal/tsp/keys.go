package tsp

import "sort"

// DecodeKeys maps a random-key vector to a permutation: city indices sorted
// by ascending key, ties in index order.
func DecodeKeys(keys []float64) []int {
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return keys[order[a]] < keys[order[b]]
	})
	return order
}

// KeysObjective returns the tour length of the permutation decoded from a
// random-key vector, for continuous optimizers.
func KeysObjective(cities []Point) func([]float64) float64 {
	return func(keys []float64) float64 {
		t := &Tour{cities: cities, order: DecodeKeys(keys)}
		return t.Length()
	}
}

// TourFromKeys decodes keys into a tour over cities.
func TourFromKeys(cities []Point, keys []float64) (*Tour, error) {
	return NewTour(cities, DecodeKeys(keys))
}
