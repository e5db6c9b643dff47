package embedding

import (
	"context"
	"testing"
)

func TestCachedEmbedder_Embed(t *testing.T) {
	inner := NewMockEmbedder(8)
	c := NewCachedEmbedder(inner, "mock", 2)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := c.Embed(ctx, "a")
	if inner.Calls() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.Calls())
	}
	if v1[0] != v2[0] {
		t.Error("cached vector differs")
	}

	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "c") // evicts a
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	_, _ = c.Embed(ctx, "a")
	if inner.Calls() != 4 {
		t.Errorf("evicted key should be recomputed, calls = %d", inner.Calls())
	}
}

func TestCachedEmbedder_EmbedBatch(t *testing.T) {
	inner := NewMockEmbedder(4)
	c := NewCachedEmbedder(inner, "mock", 10)
	ctx := context.Background()

	_, _ = c.Embed(ctx, "x")
	out, err := c.EmbedBatch(ctx, []string{"x", "y", "z"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d", len(out))
	}
	want, _ := inner.Embed(ctx, "y")
	if out[1][0] != want[0] {
		t.Error("batch results out of order")
	}
	// Embed(x), one EmbedBatch for the misses, and the direct Embed(y)
	if inner.Calls() != 3 {
		t.Errorf("inner calls = %d, want 3", inner.Calls())
	}
	before := inner.Calls()
	if _, err := c.EmbedBatch(ctx, []string{"y", "z"}); err != nil {
		t.Fatal(err)
	}
	if inner.Calls() != before {
		t.Error("fully cached batch should not call inner embedder")
	}
	empty, err := c.EmbedBatch(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty batch: %v, %v", empty, err)
	}
}

// shortEmbedder drops the last vector of every batch.
type shortEmbedder struct {
	*MockEmbedder
}

func (s shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := s.MockEmbedder.EmbedBatch(ctx, texts)
	if err != nil || len(out) == 0 {
		return out, err
	}
	return out[:len(out)-1], nil
}

func TestCachedEmbedder_EmbedBatchShortResult(t *testing.T) {
	c := NewCachedEmbedder(shortEmbedder{NewMockEmbedder(4)}, "mock", 10)
	out, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatalf("expected error for short batch, got %d vectors", len(out))
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want nothing cached", c.Len())
	}
}

func TestCachedEmbedder_keyIncludesModel(t *testing.T) {
	a := NewCachedEmbedder(NewMockEmbedder(4), "model-a", 10)
	b := NewCachedEmbedder(NewMockEmbedder(4), "model-b", 10)
	if a.key("text") == b.key("text") {
		t.Error("cache keys should differ across models")
	}
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	v1, _ := e.Embed(ctx, "hello")
	v2, _ := e.Embed(ctx, "hello")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatal("embedding must be deterministic")
		}
	}
	batch, _ := e.EmbedBatch(ctx, []string{"hello", "world"})
	if len(batch) != 2 || batch[0][0] != v1[0] {
		t.Error("batch embedding should match single embedding")
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.EmbedBatch(cancelled, []string{"x"}); err == nil {
		t.Error("expected error on cancelled context")
	}
	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("default dimension should be 384")
	}
}
