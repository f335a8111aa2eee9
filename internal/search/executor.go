package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/vector"
)

// Execute runs a k-NN query against idx and returns at most k neighbors ordered by
// ascending squared L2 distance, ties broken by ascending label.
//
// efSearch is applied only to indexes that implement vector.Tunable, and never below k.
// Faults inside the index, including panics, are reported as errs.KindQueryFailed.
func Execute(ctx context.Context, idx vector.Index, query []float32, k, efSearch int) ([]vector.Neighbor, error) {
	const op = "search.execute"
	if k <= 0 {
		return nil, errs.Newf(errs.KindQueryFailed, op, "", "k must be positive, got %d", k)
	}
	if len(query) != idx.Dims() {
		return nil, errs.Newf(errs.KindQueryFailed, op, "", "query has %d dimensions, index has %d", len(query), idx.Dims())
	}
	if idx.Len() == 0 {
		return []vector.Neighbor{}, nil
	}
	if t, ok := idx.(vector.Tunable); ok && efSearch > 0 {
		t.SetEfSearch(max(efSearch, k))
	}

	neighbors, err := safeSearch(ctx, idx, query, k)
	if err != nil {
		return nil, errs.New(errs.KindQueryFailed, op, "", err)
	}
	if neighbors == nil {
		return nil, errs.New(errs.KindQueryFailed, op, "", vector.ErrNoResult)
	}

	vector.SortNeighbors(neighbors)
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func safeSearch(ctx context.Context, idx vector.Index, query []float32, k int) (ns []vector.Neighbor, err error) {
	defer func() {
		if r := recover(); r != nil {
			ns, err = nil, fmt.Errorf("index panicked: %v", r)
		}
	}()
	ns, err = idx.Search(ctx, query, k)
	if errors.Is(err, vector.ErrNoResult) {
		return nil, err
	}
	return ns, err
}
