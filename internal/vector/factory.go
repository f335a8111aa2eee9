package vector

import "fmt"

// Kind identifies the index implementation stored in an artifact.
type Kind uint8

const (
	// KindHNSW is an HNSW graph (github.com/coder/hnsw). Approximate, tunable with efSearch.
	KindHNSW Kind = 1
	// KindFlat is brute-force exact search. Good for small collections (<10k vectors).
	KindFlat Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindHNSW:
		return "hnsw"
	case KindFlat:
		return "flat"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind maps "hnsw" or "flat" to a Kind. Empty defaults to hnsw.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "hnsw", "":
		return KindHNSW, nil
	case "flat":
		return KindFlat, nil
	default:
		return 0, fmt.Errorf("unknown index kind: %s (supported: hnsw, flat)", s)
	}
}

// New creates an empty index of the given kind.
func New(kind Kind, dimensions int) (Index, error) {
	switch kind {
	case KindHNSW:
		return NewHNSWIndex(dimensions)
	case KindFlat:
		return NewFlatIndex(dimensions)
	default:
		return nil, fmt.Errorf("unsupported index kind: %s", kind)
	}
}
