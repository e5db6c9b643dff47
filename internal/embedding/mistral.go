package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// Mistral API defaults.
const (
	DefaultMistralBaseURL = "https://api.mistral.ai/v1"
	DefaultMistralModel   = "mistral-embed"
	mistralEmbedDims      = 1024
)

// MistralConfig configures the Mistral embeddings client. Mistral exposes an
// OpenAI-compatible API, so the OpenAI client is pointed at its base URL.
type MistralConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration

	// RequestsPerSecond throttles embedding requests; 0 disables throttling.
	RequestsPerSecond float64
}

// MistralEmbedder calls the Mistral embeddings endpoint.
type MistralEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	batchSize  int
	limiter    *rate.Limiter
}

// NewMistralEmbedder creates the client. The API key is required.
func NewMistralEmbedder(cfg MistralConfig) (*MistralEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mistral: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMistralBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultMistralModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = mistralEmbedDims
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	)
	m := &MistralEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}
	if cfg.RequestsPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return m, nil
}

// Embed embeds a single text.
func (m *MistralEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts, splitting them into requests of at most BatchSize inputs.
func (m *MistralEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += m.batchSize {
		end := start + m.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := m.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (m *MistralEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("mistral embeddings: %w", err)
		}
	}
	resp, err := m.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(m.model),
	})
	if err != nil {
		return nil, fmt.Errorf("mistral embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("mistral embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		i := int(d.Index)
		if i < 0 || i >= len(texts) || out[i] != nil {
			return nil, fmt.Errorf("mistral embeddings: bad index %d", d.Index)
		}
		if len(d.Embedding) != m.dimensions {
			return nil, fmt.Errorf("mistral embeddings: dimension %d, expected %d", len(d.Embedding), m.dimensions)
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (m *MistralEmbedder) Dimensions() int {
	return m.dimensions
}

// Close is a no-op; the HTTP client holds no resources.
func (m *MistralEmbedder) Close() error {
	return nil
}
