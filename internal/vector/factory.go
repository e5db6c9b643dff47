// Package vector provides vector index implementations and a factory for creating them.
package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for small datasets (<10k vectors).
	IndexTypeMemory IndexType = "memory"
	// IndexTypeHNSW uses a pure Go HNSW graph for approximate search.
	IndexTypeHNSW IndexType = "hnsw"
	// IndexTypeFAISS uses a flat FAISS index.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// Config selects and parameterizes a vector index.
type Config struct {
	Type       string
	Dimensions int
	Metric     Metric
	// HNSW only.
	M        int
	EfSearch int
}

// NewVectorIndex creates a vector index of the configured type.
// Supported types: "memory" (default), "hnsw", "faiss".
// FAISS requires building with -tags=faiss and having FAISS library installed.
func NewVectorIndex(cfg Config) (VectorIndex, error) {
	switch IndexType(cfg.Type) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(cfg.Dimensions, cfg.Metric)
	case IndexTypeHNSW:
		return NewHNSWIndex(cfg.Dimensions, cfg.Metric, cfg.M, cfg.EfSearch)
	case IndexTypeFAISS:
		return NewFAISSIndex(cfg.Dimensions, cfg.Metric)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, hnsw, faiss)", cfg.Type)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1, MetricL2)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
