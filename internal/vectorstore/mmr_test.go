package vectorstore

import (
	"math"
	"reflect"
	"testing"
)

func TestMaximalMarginalRelevance(t *testing.T) {
	query := []float32{1, 1}
	candidates := [][]float32{
		{1, 0.9},  // closest to query
		{1, 0.85}, // near duplicate of 0
		{0.2, 1},  // relevant, different direction
		{0, -1},   // opposite
	}

	tests := []struct {
		name   string
		lambda float64
		k      int
		want   []int
	}{
		{"relevance only", 1, 4, []int{0, 1, 2, 3}},
		{"diversity only", 0, 3, []int{0, 3, 2}},
		{"balanced skips near duplicate", 0.5, 2, []int{0, 2}},
		{"k larger than candidates", 1, 10, []int{0, 1, 2, 3}},
		{"k zero", 0.5, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, scores := MaximalMarginalRelevance(query, candidates, tt.lambda, tt.k)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if len(scores) != len(got) {
				t.Errorf("scores %d for %d picks", len(scores), len(got))
			}
		})
	}
}

func TestMaximalMarginalRelevance_tiesPreferEarlier(t *testing.T) {
	query := []float32{1, 1}
	candidates := [][]float32{{1, 0}, {0, 1}, {1, 0}}
	got, _ := MaximalMarginalRelevance(query, candidates, 1, 3)
	if !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("got %v, want [0 1 2]", got)
	}
}

func TestMaximalMarginalRelevance_scores(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{{1, 0}, {0, 1}}
	_, scores := MaximalMarginalRelevance(query, candidates, 0.5, 2)
	// First pick: 0.5*1. Second: 0.5*0 - 0.5*0.
	if math.Abs(scores[0]-0.5) > 1e-9 || math.Abs(scores[1]) > 1e-9 {
		t.Errorf("scores = %v", scores)
	}
}

func TestMaximalMarginalRelevance_empty(t *testing.T) {
	idxs, scores := MaximalMarginalRelevance([]float32{1}, nil, 0.5, 3)
	if idxs != nil || scores != nil {
		t.Errorf("expected nil results, got %v %v", idxs, scores)
	}
}
