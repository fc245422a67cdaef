package tsp

import "math/rand"

// orderCrossover (OX) copies the slice [i, j) of a into the child at the same
// positions and fills the remaining positions, left to right, with the genes
// of b in their relative order, skipping genes already placed.
func orderCrossover(a, b []int, rng *rand.Rand) []int {
	n := len(a)
	i, j := rng.Intn(n), rng.Intn(n)
	if i > j {
		i, j = j, i
	}
	j++

	child := make([]int, n)
	placed := make([]bool, n)
	for k := i; k < j; k++ {
		child[k] = a[k]
		placed[a[k]] = true
	}

	pos := 0
	for _, gene := range b {
		if placed[gene] {
			continue
		}
		for pos >= i && pos < j {
			pos++
		}
		child[pos] = gene
		pos++
	}
	return child
}
