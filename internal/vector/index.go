// Package vector provides the nearest-neighbor primitives behind an index artifact.
package vector

import (
	"context"
	"errors"
	"io"
)

// ErrNoResult is returned when a search over a non-empty index yields no structural result.
var ErrNoResult = errors.New("search returned no result")

// Index is a fixed-dimensionality k-NN index addressed by integer labels.
// Distances are squared Euclidean.
type Index interface {
	Kind() Kind
	Dims() int
	Len() int
	Add(ctx context.Context, labels []uint64, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Export(w io.Writer) error
	Import(r io.Reader) error
}

// Tunable is implemented by indexes that accept a search-time quality/latency knob.
type Tunable interface {
	SetEfSearch(ef int)
}

// Neighbor is a single k-NN hit.
type Neighbor struct {
	Label    uint64
	Distance float32
}
