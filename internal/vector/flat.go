package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// FlatIndex is a brute-force exact index. It ignores efSearch.
type FlatIndex struct {
	dimensions int
	labels     []uint64
	vectors    [][]float32
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

func (f *FlatIndex) Kind() Kind { return KindFlat }

func (f *FlatIndex) Dims() int { return f.dimensions }

func (f *FlatIndex) Len() int { return len(f.labels) }

// Add appends vectors with the given labels.
func (f *FlatIndex) Add(ctx context.Context, labels []uint64, vectors [][]float32) error {
	if len(labels) != len(vectors) {
		return fmt.Errorf("labels and vectors length mismatch")
	}
	for i, label := range labels {
		if len(vectors[i]) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), f.dimensions)
		}
		vec := make([]float32, f.dimensions)
		copy(vec, vectors[i])
		f.labels = append(f.labels, label)
		f.vectors = append(f.vectors, vec)
	}
	return nil
}

// Search scans every vector and returns the k nearest.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if k <= 0 || len(f.labels) == 0 {
		return []Neighbor{}, nil
	}
	scored := make([]Neighbor, len(f.labels))
	for i, vec := range f.vectors {
		scored[i] = Neighbor{Label: f.labels[i], Distance: SquaredL2(query, vec)}
	}
	SortNeighbors(scored)
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Export writes one record per vector: label (8 bytes), then dimension*4 bytes of float32.
func (f *FlatIndex) Export(w io.Writer) error {
	bw := bufio.NewWriter(w)
	rec := make([]byte, 8+f.dimensions*4)
	for i, label := range f.labels {
		binary.LittleEndian.PutUint64(rec[:8], label)
		putFloat32s(rec[8:], f.vectors[i])
		if _, err := bw.Write(rec); err != nil {
			return fmt.Errorf("write vector %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// Import replaces the contents with records read until EOF. A trailing partial record is an error.
func (f *FlatIndex) Import(r io.Reader) error {
	rec := make([]byte, 8+f.dimensions*4)
	labels := make([]uint64, 0)
	vectors := make([][]float32, 0)
	for {
		_, err := io.ReadFull(r, rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read vector %d: %w", len(labels), err)
		}
		labels = append(labels, binary.LittleEndian.Uint64(rec[:8]))
		vectors = append(vectors, getFloat32s(rec[8:]))
	}
	f.labels = labels
	f.vectors = vectors
	return nil
}

func putFloat32s(dst []byte, s []float32) {
	for i, v := range s {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func getFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
