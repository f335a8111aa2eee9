package search

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/storage"
	"github.com/hyperjump/recall/internal/vector"
)

const benchDims = 384

func benchIndex(b *testing.B, kind vector.Kind, n int) (vector.Index, []float32) {
	b.Helper()
	rng := rand.New(rand.NewSource(7))
	idx, err := vector.New(kind, benchDims)
	if err != nil {
		b.Fatal(err)
	}
	labels := make([]uint64, n)
	vecs := make([][]float32, n)
	for i := range vecs {
		labels[i] = uint64(i)
		vecs[i] = make([]float32, benchDims)
		for j := range vecs[i] {
			vecs[i][j] = rng.Float32()
		}
	}
	if err := idx.Add(context.Background(), labels, vecs); err != nil {
		b.Fatal(err)
	}
	return idx, vecs[n/2]
}

func BenchmarkExecuteFlat(b *testing.B) {
	idx, query := benchIndex(b, vector.KindFlat, 1000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Execute(ctx, idx, query, 10, 0)
	}
}

func BenchmarkExecuteHNSW(b *testing.B) {
	idx, query := benchIndex(b, vector.KindHNSW, 1000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Execute(ctx, idx, query, 10, 150)
	}
}

// BenchmarkEngineRun includes the per-query artifact load.
func BenchmarkEngineRun(b *testing.B) {
	idx, query := benchIndex(b, vector.KindHNSW, 1000)
	root := b.TempDir()
	labels := storage.LabelMap{}
	for i := 0; i < idx.Len(); i++ {
		labels[strconv.Itoa(i)] = []byte(`{"sourceFile":"bench.txt","text":"entry"}`)
	}
	if err := storage.WriteCollection(root, "bench", idx, labels, storage.WithCompression(true)); err != nil {
		b.Fatal(err)
	}
	engine := NewEngine()
	req := &models.Request{Collection: "bench", QueryVector: query, K: 3, VectorStorePath: root}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Run(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
