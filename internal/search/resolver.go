package search

import (
	"encoding/json"

	"github.com/hyperjump/recall/internal/storage"
	"github.com/hyperjump/recall/internal/vector"
)

// Resolve maps neighbors to their content records, preserving order. Labels without a
// usable record are skipped; dropped is how many were skipped.
func Resolve(neighbors []vector.Neighbor, labels storage.LabelMap) (records []json.RawMessage, dropped int) {
	records = make([]json.RawMessage, 0, len(neighbors))
	for _, n := range neighbors {
		rec, ok := labels.Lookup(n.Label)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}
