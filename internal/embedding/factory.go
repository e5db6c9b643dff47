package embedding

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config selects and configures the embedding provider.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
	ModelPath  string
	MaxTokens  int
	CacheSize  int

	// RequestsPerSecond throttles remote providers; 0 disables throttling.
	RequestsPerSecond float64
}

// New builds the configured provider once and wraps it in a cache. An unusable ONNX
// model falls back to the mock embedder with a warning, as local development does.
func New(cfg Config, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner Embedder
		model = cfg.Model
	)
	switch cfg.Provider {
	case ProviderMistral, "":
		m, err := NewMistralEmbedder(MistralConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,

			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		inner = m
		if model == "" {
			model = DefaultMistralModel
		}
	case ProviderONNX:
		o, err := NewONNXEmbedder(ONNXConfig{ModelPath: cfg.ModelPath, Dimensions: cfg.Dimensions, MaxTokens: cfg.MaxTokens})
		if err != nil {
			logger.Warn("onnx embedder unavailable, using mock embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			inner = NewMockEmbedder(cfg.Dimensions)
			model = ProviderMock
		} else {
			inner = o
			model = cfg.ModelPath
		}
	case ProviderMock:
		inner = NewMockEmbedder(cfg.Dimensions)
		model = ProviderMock
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mistral, onnx, mock)", cfg.Provider)
	}
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", model),
		zap.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, model, cfg.CacheSize), nil
}
