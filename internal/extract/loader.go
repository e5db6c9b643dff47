package extract

import (
	"context"
	"fmt"
	"runtime"

	"github.com/hyperjump/mcqgen/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Loader extracts many files concurrently.
type Loader struct {
	extractor *Extractor
	workers   int
	logger    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithWorkers bounds concurrent extractions. n <= 0 uses GOMAXPROCS.
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		extractor: NewExtractor(),
		workers:   runtime.GOMAXPROCS(0),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load extracts paths and returns their documents in input order. Files with an
// unsupported extension are skipped with a warning and returned in skipped. The first
// extraction failure cancels the rest and is returned.
func (l *Loader) Load(ctx context.Context, paths []string) ([]models.Document, []string, error) {
	var skipped []string
	var supported []string
	for _, p := range paths {
		if !Supported(p) {
			l.logger.Warn("unsupported extension skipped", zap.String("path", p))
			skipped = append(skipped, p)
			continue
		}
		supported = append(supported, p)
	}

	results := make([][]models.Document, len(supported))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, p := range supported {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs, err := l.extractor.Extract(p)
			if err != nil {
				return fmt.Errorf("load %s: %w", p, err)
			}
			l.logger.Debug("document loaded", zap.String("path", p), zap.Int("documents", len(docs)))
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, skipped, err
	}

	var docs []models.Document
	for _, r := range results {
		docs = append(docs, r...)
	}
	l.logger.Info("documents loaded",
		zap.Int("files", len(supported)),
		zap.Int("skipped", len(skipped)),
		zap.Int("documents", len(docs)))
	return docs, skipped, nil
}
