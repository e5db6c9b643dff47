package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/mcqgen/internal/models"
)

// tableEmbedder returns fixed vectors so rankings are predictable.
type tableEmbedder struct {
	vecs map[string][]float32
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := e.vecs[text]
	if !ok {
		return nil, errors.New("unknown text " + text)
	}
	return v, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) Dimensions() int { return 2 }
func (e *tableEmbedder) Close() error    { return nil }

func newTableManager(t *testing.T, metric string) *Manager {
	t.Helper()
	e := &tableEmbedder{vecs: map[string][]float32{
		"query":       {1, 1},
		"close":       {1, 0.9},
		"near dup":    {1, 0.85},
		"other angle": {0.2, 1},
		"opposite":    {0, -1},
	}}
	m, err := New(Config{Dir: t.TempDir(), Metric: metric}, e)
	if err != nil {
		t.Fatal(err)
	}
	seed := []models.Chunk{
		{Content: "opposite", Metadata: map[string]interface{}{"source": "s", "row_id": 0}},
		{Content: "other angle", Metadata: map[string]interface{}{"source": "s", "row_id": 1}},
		{Content: "near dup", Metadata: map[string]interface{}{"source": "s", "row_id": 2}},
		{Content: "close", Metadata: map[string]interface{}{"source": "s", "row_id": 3}},
	}
	if _, err := m.OpenOrCreate(context.Background(), seed...); err != nil {
		t.Fatal(err)
	}
	return m
}

func contents(ps []*models.Passage) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Content
	}
	return out
}

func TestRetrieverOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    RetrieverOptions
		wantErr bool
	}{
		{"default", DefaultRetrieverOptions(), false},
		{"similarity", RetrieverOptions{SearchType: SearchSimilarity, K: 3}, false},
		{"similarity ignores fetch_k", RetrieverOptions{SearchType: SearchSimilarity, K: 3, FetchK: 1, LambdaMult: 7}, false},
		{"zero k", RetrieverOptions{SearchType: SearchSimilarity}, true},
		{"mmr fetch_k below k", RetrieverOptions{SearchType: SearchMMR, K: 5, FetchK: 4, LambdaMult: 0.5}, true},
		{"mmr lambda too high", RetrieverOptions{SearchType: SearchMMR, K: 5, FetchK: 5, LambdaMult: 1.1}, true},
		{"mmr lambda negative", RetrieverOptions{SearchType: SearchMMR, K: 5, FetchK: 5, LambdaMult: -0.1}, true},
		{"mmr lambda bounds", RetrieverOptions{SearchType: SearchMMR, K: 1, FetchK: 1, LambdaMult: 1}, false},
		{"unknown type", RetrieverOptions{SearchType: "bm25", K: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("expected ErrConfiguration, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRetrieverOptions_WithK(t *testing.T) {
	o := DefaultRetrieverOptions().WithK(30)
	if o.K != 30 || o.FetchK != 30 {
		t.Errorf("WithK(30) = %+v", o)
	}
	if got := DefaultRetrieverOptions().WithK(0); got != DefaultRetrieverOptions() {
		t.Errorf("WithK(0) changed options: %+v", got)
	}
}

func TestAsRetriever_rejectsInvalid(t *testing.T) {
	m := newTableManager(t, "l2")
	if _, err := m.AsRetriever(RetrieverOptions{SearchType: SearchMMR, K: 0}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestRetrieve_similarity(t *testing.T) {
	for _, metric := range []string{"l2", "cos"} {
		t.Run(metric, func(t *testing.T) {
			m := newTableManager(t, metric)
			r, err := m.AsRetriever(RetrieverOptions{SearchType: SearchSimilarity, K: 3})
			if err != nil {
				t.Fatal(err)
			}
			got, err := r.Retrieve(context.Background(), "query")
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"close", "near dup", "other angle"}
			if len(got) != len(want) {
				t.Fatalf("got %v", contents(got))
			}
			for i := range want {
				if got[i].Content != want[i] {
					t.Errorf("rank %d = %q, want %q", i+1, got[i].Content, want[i])
				}
				if got[i].Rank != i+1 {
					t.Errorf("rank field = %d", got[i].Rank)
				}
				if i > 0 && got[i].Score < got[i-1].Score {
					t.Errorf("distances not ascending: %v then %v", got[i-1].Score, got[i].Score)
				}
			}
			if got[0].Metadata["source"] != "s" {
				t.Errorf("metadata lost: %v", got[0].Metadata)
			}
		})
	}
}

func TestRetrieve_passageIDsStableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	m := newTableManager(t, "l2")
	opts := RetrieverOptions{SearchType: SearchSimilarity, K: 4}
	r, err := m.AsRetriever(opts)
	if err != nil {
		t.Fatal(err)
	}
	first, err := r.Retrieve(ctx, "query")
	if err != nil {
		t.Fatal(err)
	}
	ids := make(map[string]string, len(first))
	for _, p := range first {
		if p.ID == "" {
			t.Fatalf("passage %q has no id", p.Content)
		}
		if prev, dup := ids[p.ID]; dup {
			t.Errorf("id %s shared by %q and %q", p.ID, prev, p.Content)
		}
		ids[p.ID] = p.Content
	}

	reopened, err := New(Config{Dir: m.Dir(), Metric: "l2"}, m.embedder)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reopened.OpenOrCreate(ctx); err != nil {
		t.Fatal(err)
	}
	r2, err := reopened.AsRetriever(opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r2.Retrieve(ctx, "query")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range second {
		if ids[p.ID] != p.Content {
			t.Errorf("after reopen id %s maps to %q, want %q", p.ID, p.Content, ids[p.ID])
		}
	}
}

func TestRetrieve_mmrDiversifies(t *testing.T) {
	m := newTableManager(t, "l2")
	r, err := m.AsRetriever(RetrieverOptions{SearchType: SearchMMR, K: 2, FetchK: 4, LambdaMult: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatal(err)
	}
	if c := contents(got); len(c) != 2 || c[0] != "close" || c[1] != "other angle" {
		t.Errorf("mmr picked %v, want [close other angle]", c)
	}

	r, _ = m.AsRetriever(RetrieverOptions{SearchType: SearchMMR, K: 2, FetchK: 4, LambdaMult: 1})
	got, _ = r.Retrieve(context.Background(), "query")
	if c := contents(got); len(c) != 2 || c[1] != "near dup" {
		t.Errorf("lambda 1 picked %v, want relevance order", c)
	}
}

func TestRetrieve_kLargerThanIndex(t *testing.T) {
	m := newTableManager(t, "l2")
	r, _ := m.AsRetriever(RetrieverOptions{SearchType: SearchMMR, K: 10, FetchK: 20, LambdaMult: 0.5})
	got, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("got %d passages, want all 4", len(got))
	}
}

func TestRetrieve_emptyQuery(t *testing.T) {
	m := newTableManager(t, "l2")
	r, _ := m.AsRetriever(DefaultRetrieverOptions())
	if _, err := r.Retrieve(context.Background(), "  "); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestRetrieve_embeddingFailure(t *testing.T) {
	m := newTableManager(t, "l2")
	r, _ := m.AsRetriever(DefaultRetrieverOptions())
	if _, err := r.Retrieve(context.Background(), "not in table"); !errors.Is(err, ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
}
