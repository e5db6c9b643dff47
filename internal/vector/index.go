// Package vector provides vector index and similarity search.
package vector

import "context"

// VectorIndex stores vectors under positional labels: the n-th vector ever added has
// label n-1. Indexes are append-only; Add either stores every vector or none.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Vector(label int64) ([]float32, bool)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Metric() Metric
	Type() string
	Close() error
}

// VectorResult is a single vector search hit. Lower distance is closer.
type VectorResult struct {
	Label    int64
	Distance float64
}
