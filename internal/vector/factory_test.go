package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantType string
		wantErr  bool
	}{
		{"memory", Config{Type: "memory", Dimensions: 3}, "memory", false},
		{"empty defaults to memory", Config{Dimensions: 3}, "memory", false},
		{"hnsw", Config{Type: "hnsw", Dimensions: 3, Metric: MetricCosine}, "hnsw", false},
		{"unknown", Config{Type: "annoy", Dimensions: 3}, "", true},
		{"zero dimension", Config{Type: "memory"}, "", true},
		{"bad metric", Config{Type: "memory", Dimensions: 3, Metric: "dot"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := NewVectorIndex(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVectorIndex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer idx.Close()
			if idx.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", idx.Type(), tt.wantType)
			}
			if idx.Dimensions() != 3 {
				t.Errorf("Dimensions() = %d", idx.Dimensions())
			}
			if err := idx.Add(context.Background(), [][]float32{{1, 0, 0}}); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if idx.Size() != 1 {
				t.Errorf("Size=%d, want 1", idx.Size())
			}
		})
	}
}

func TestIsFAISSAvailable(t *testing.T) {
	// The result depends on build tags.
	t.Logf("FAISS available: %v", IsFAISSAvailable())
}

func TestNewVectorIndex_FAISS(t *testing.T) {
	if !IsFAISSAvailable() {
		t.Skip("FAISS not available (build with -tags=faiss)")
	}
	idx, err := NewVectorIndex(Config{Type: "faiss", Dimensions: 3})
	if err != nil {
		t.Fatalf("NewVectorIndex(faiss): %v", err)
	}
	defer idx.Close()
	if err := idx.Add(context.Background(), [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
}
