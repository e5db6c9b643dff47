package vector

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
)

func TestHNSWIndex_AddSearch(t *testing.T) {
	idx, err := NewHNSWIndex(3, MetricL2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(ctx, [][]float32{{0.9, 0.1, 0}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 4 {
		t.Fatalf("Size=%d, want 4", idx.Size())
	}
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Label != 0 || results[1].Label != 3 {
		t.Errorf("labels = %d,%d, want 0,3", results[0].Label, results[1].Label)
	}
	v, ok := idx.Vector(3)
	if !ok || v[0] != 0.9 {
		t.Errorf("Vector(3) = %v, %v", v, ok)
	}
}

func TestHNSWIndex_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.vectors")
	idx, _ := NewHNSWIndex(2, MetricCosine, 8, 10)
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	idx2, _ := NewHNSWIndex(2, MetricCosine, 8, 10)
	if err := idx2.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx2.Size() != 3 {
		t.Errorf("after Load size=%d, want 3", idx2.Size())
	}
	results, err := idx2.Search(ctx, []float32{0, 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Label != 1 {
		t.Errorf("Search after Load: %+v", results)
	}
}

func TestHNSWIndex_LoadMissing(t *testing.T) {
	idx, _ := NewHNSWIndex(2, MetricL2, 0, 0)
	if err := idx.Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error loading missing file")
	}
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewHNSWIndex(3, MetricL2, 0, 0)
	if err := idx.Add(context.Background(), [][]float32{{1, 0}}); err == nil {
		t.Error("expected dimension error")
	}
	if idx.Size() != 0 {
		t.Errorf("size=%d after failed Add", idx.Size())
	}
}

func TestHNSWIndex_MatchesExactSearch(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	vectors := make([][]float32, 300)
	for i := range vectors {
		v := make([]float32, 16)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		vectors[i] = v
	}
	queries := make([][]float32, 50)
	for i := range queries {
		q := make([]float32, 16)
		for j := range q {
			q[j] = rng.Float32()*2 - 1
		}
		queries[i] = q
	}

	for _, metric := range []Metric{MetricL2, MetricCosine} {
		t.Run(string(metric), func(t *testing.T) {
			exact, err := NewMemoryIndex(16, metric)
			if err != nil {
				t.Fatal(err)
			}
			idx, err := NewHNSWIndex(16, metric, 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if err := exact.Add(ctx, vectors); err != nil {
				t.Fatal(err)
			}
			if err := idx.Add(ctx, vectors); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(t.TempDir(), "index.vectors")
			if err := idx.Save(path); err != nil {
				t.Fatal(err)
			}
			loaded, _ := NewHNSWIndex(16, metric, 0, 0)
			if err := loaded.Load(path); err != nil {
				t.Fatal(err)
			}

			for name, got := range map[string]*HNSWIndex{"built": idx, "loaded": loaded} {
				misses := 0
				for _, q := range queries {
					want, err := exact.Search(ctx, q, 10)
					if err != nil {
						t.Fatal(err)
					}
					res, err := got.Search(ctx, q, 10)
					if err != nil {
						t.Fatal(err)
					}
					if len(res) != 10 {
						t.Fatalf("%s: got %d results, want 10", name, len(res))
					}
					inExact := make(map[int64]bool, len(want))
					for _, r := range want {
						inExact[r.Label] = true
					}
					for i, r := range res {
						if !inExact[r.Label] {
							misses++
						}
						if i > 0 && res[i-1].Distance > r.Distance {
							t.Errorf("%s: distances not ascending at %d", name, i)
						}
					}
				}
				if misses != 0 {
					t.Errorf("%s: %d of %d results outside the exact top 10", name, misses, len(queries)*10)
				}
			}
		})
	}
}
