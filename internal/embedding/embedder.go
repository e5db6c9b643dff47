// Package embedding provides text embedding providers: a Mistral API client, a local
// ONNX model, and a deterministic mock, plus an LRU cache in front of any of them.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch returns one vector per
// input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Provider names accepted by New.
const (
	ProviderMistral = "mistral"
	ProviderONNX    = "onnx"
	ProviderMock    = "mock"
)
