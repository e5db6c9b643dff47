package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/mcqgen/internal/models"
)

// Search types accepted by RetrieverOptions.
const (
	SearchSimilarity = "similarity"
	SearchMMR        = "mmr"
)

// RetrieverOptions controls how passages are selected. FetchK and LambdaMult only
// apply to MMR.
type RetrieverOptions struct {
	SearchType string  `json:"search_type" yaml:"search_type"`
	K          int     `json:"k" yaml:"k"`
	FetchK     int     `json:"fetch_k" yaml:"fetch_k"`
	LambdaMult float64 `json:"lambda_mult" yaml:"lambda_mult"`
}

// DefaultRetrieverOptions returns MMR with k=5, fetch_k=20 and lambda 0.5.
func DefaultRetrieverOptions() RetrieverOptions {
	return RetrieverOptions{SearchType: SearchMMR, K: 5, FetchK: 20, LambdaMult: 0.5}
}

// Validate reports ErrConfiguration for unusable options.
func (o RetrieverOptions) Validate() error {
	if o.K < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", ErrConfiguration, o.K)
	}
	switch o.SearchType {
	case SearchSimilarity:
		return nil
	case SearchMMR:
		if o.FetchK < o.K {
			return fmt.Errorf("%w: fetch_k (%d) must be at least k (%d)", ErrConfiguration, o.FetchK, o.K)
		}
		if o.LambdaMult < 0 || o.LambdaMult > 1 {
			return fmt.Errorf("%w: lambda_mult must be in [0, 1], got %v", ErrConfiguration, o.LambdaMult)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown search type %q (supported: similarity, mmr)", ErrConfiguration, o.SearchType)
	}
}

// WithK returns a copy with K replaced, raising FetchK if needed. k <= 0 keeps K.
func (o RetrieverOptions) WithK(k int) RetrieverOptions {
	if k <= 0 {
		return o
	}
	o.K = k
	if o.FetchK < k {
		o.FetchK = k
	}
	return o
}

// Retriever answers queries against a Manager.
type Retriever struct {
	manager *Manager
	opts    RetrieverOptions
}

// AsRetriever binds validated options to the manager. The manager need not be ready yet;
// Retrieve checks that.
func (m *Manager) AsRetriever(opts RetrieverOptions) (*Retriever, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Retriever{manager: m, opts: opts}, nil
}

// Options returns the bound options.
func (r *Retriever) Options() RetrieverOptions {
	return r.opts
}

// Retrieve returns at most K passages for query. Similarity results are ordered by
// ascending distance; MMR results in selection order.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]*models.Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrConfiguration)
	}
	if r.opts.SearchType == SearchSimilarity {
		_, hits, err := r.manager.search(ctx, query, r.opts.K, false)
		if err != nil {
			return nil, err
		}
		out := make([]*models.Passage, len(hits))
		for i, h := range hits {
			out[i] = passage(h, h.distance, i+1)
		}
		return out, nil
	}

	q, hits, err := r.manager.search(ctx, query, r.opts.FetchK, true)
	if err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(hits))
	for i, h := range hits {
		vecs[i] = h.vector
	}
	idxs, scores := MaximalMarginalRelevance(q, vecs, r.opts.LambdaMult, r.opts.K)
	out := make([]*models.Passage, len(idxs))
	for i, idx := range idxs {
		out[i] = passage(hits[idx], scores[i], i+1)
	}
	return out, nil
}

func passage(h hit, score float64, rank int) *models.Passage {
	return &models.Passage{
		ID:       h.entry.ID,
		Content:  h.entry.Content,
		Metadata: models.CloneMetadata(h.entry.Metadata),
		Score:    score,
		Rank:     rank,
	}
}
