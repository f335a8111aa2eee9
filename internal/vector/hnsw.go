package vector

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/coder/hnsw"
)

// Graph construction defaults, matching the parameters the diary indexes were built with.
const (
	DefaultM        = 16
	DefaultEfSearch = 150
)

// HNSWIndex wraps a coder/hnsw graph keyed by label.
// The graph ranks with Euclidean distance; reported distances are recomputed as squared L2,
// which preserves the order.
type HNSWIndex struct {
	graph      *hnsw.Graph[uint64]
	dimensions int
}

// NewHNSWIndex creates an empty HNSW index with the given dimension.
func NewHNSWIndex(dimensions int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &HNSWIndex{graph: newGraph(), dimensions: dimensions}, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	g.M = DefaultM
	g.EfSearch = DefaultEfSearch
	return g
}

func (h *HNSWIndex) Kind() Kind { return KindHNSW }

func (h *HNSWIndex) Dims() int { return h.dimensions }

func (h *HNSWIndex) Len() int { return h.graph.Len() }

// SetEfSearch sets the candidate list size used by Search.
func (h *HNSWIndex) SetEfSearch(ef int) {
	if ef > 0 {
		h.graph.EfSearch = ef
	}
}

// Add inserts vectors. Re-adding an existing label replaces its vector.
func (h *HNSWIndex) Add(ctx context.Context, labels []uint64, vectors [][]float32) error {
	if len(labels) != len(vectors) {
		return fmt.Errorf("labels and vectors length mismatch")
	}
	nodes := make([]hnsw.Node[uint64], 0, len(labels))
	for i, label := range labels {
		if len(vectors[i]) != h.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), h.dimensions)
		}
		vec := make([]float32, h.dimensions)
		copy(vec, vectors[i])
		nodes = append(nodes, hnsw.Node[uint64]{Key: label, Value: vec})
	}
	if len(nodes) > 0 {
		h.graph.Add(nodes...)
	}
	return nil
}

// Search returns approximate nearest neighbors in graph order. The graph is asked for
// max(k, efSearch) candidates, so more than k may come back; callers sort and truncate.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), h.dimensions)
	}
	if k <= 0 || h.graph.Len() == 0 {
		return []Neighbor{}, nil
	}
	nodes := h.graph.Search(query, h.candidates(k))
	if nodes == nil {
		return nil, ErrNoResult
	}
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		if len(n.Value) != h.dimensions {
			return nil, fmt.Errorf("stored vector %d has dimension %d, expected %d", n.Key, len(n.Value), h.dimensions)
		}
		out = append(out, Neighbor{Label: n.Key, Distance: SquaredL2(query, n.Value)})
	}
	return out, nil
}

// candidates is the result-set size requested from the graph, never more than it holds.
func (h *HNSWIndex) candidates(k int) int {
	return min(max(k, h.graph.EfSearch), h.graph.Len())
}

// Export writes the graph in coder/hnsw's native encoding.
func (h *HNSWIndex) Export(w io.Writer) error {
	return h.graph.Export(w)
}

// Import replaces the graph with one decoded from r. A decoder panic on malformed input is
// returned as an error and leaves the current graph in place.
func (h *HNSWIndex) Import(r io.Reader) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("import hnsw graph: %v", p)
		}
	}()
	g := newGraph()
	if err := g.Import(bufio.NewReader(r)); err != nil {
		return fmt.Errorf("import hnsw graph: %w", err)
	}
	if g.Len() > 0 && g.Dims() != h.dimensions {
		return fmt.Errorf("import hnsw graph: vectors have %d dimensions, expected %d", g.Dims(), h.dimensions)
	}
	h.graph = g
	return nil
}
