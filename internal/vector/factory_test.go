package vector

import (
	"context"
	"testing"
)

func TestNew_HNSW(t *testing.T) {
	idx, err := New(KindHNSW, 3)
	if err != nil {
		t.Fatalf("New(hnsw): %v", err)
	}
	ctx := context.Background()
	if err := idx.Add(ctx, []uint64{0}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("Len=%d, want 1", idx.Len())
	}
	if _, ok := idx.(Tunable); !ok {
		t.Error("hnsw index should accept efSearch")
	}
}

func TestNew_Flat(t *testing.T) {
	idx, err := New(KindFlat, 3)
	if err != nil {
		t.Fatalf("New(flat): %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Len=%d, want 0", idx.Len())
	}
	if _, ok := idx.(Tunable); ok {
		t.Error("flat index should not accept efSearch")
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New(Kind(9), 3); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNew_InvalidDimension(t *testing.T) {
	for _, kind := range []Kind{KindHNSW, KindFlat} {
		if _, err := New(kind, 0); err == nil {
			t.Errorf("%s: expected error for zero dimension", kind)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"hnsw", KindHNSW, false},
		{"", KindHNSW, false},
		{"flat", KindFlat, false},
		{"faiss", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if KindHNSW.String() != "hnsw" || KindFlat.String() != "flat" {
		t.Errorf("unexpected names: %s %s", KindHNSW, KindFlat)
	}
	if Kind(7).String() != "unknown(7)" {
		t.Errorf("got %s", Kind(7))
	}
}
