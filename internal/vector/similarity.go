package vector

import (
	"cmp"
	"slices"
)

// SquaredL2 returns the squared Euclidean distance between a and b.
// Vectors of different length have no defined distance; the caller must check dims first.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SortNeighbors orders by ascending distance, then ascending label.
func SortNeighbors(ns []Neighbor) {
	slices.SortFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
}
