package vector

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex is a nearest-neighbour index backed by an HNSW graph. Search is exact on
// small graphs and approximate above exactScanLimit.
// Graph keys are the positional labels.
type HNSWIndex struct {
	graph      *hnsw.Graph[uint64]
	dimensions int
	metric     Metric
	m          int
	efSearch   int
	mu         sync.RWMutex
}

// NewHNSWIndex creates an HNSW index. Zero m or efSearch use the library defaults.
func NewHNSWIndex(dimensions int, metric Metric, m, efSearch int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	met, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 20
	}
	h := &HNSWIndex{dimensions: dimensions, metric: met, m: m, efSearch: efSearch}
	h.graph = h.newGraph()
	return h, nil
}

func (h *HNSWIndex) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	if h.metric == MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	g.M = h.m
	g.EfSearch = h.efSearch
	g.Ml = 0.25
	return g
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Dimensions returns the vector dimension.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Metric returns the distance metric.
func (h *HNSWIndex) Metric() Metric {
	return h.metric
}

// Add inserts vectors with labels continuing from the current size.
func (h *HNSWIndex) Add(ctx context.Context, vectors [][]float32) error {
	if err := checkDimensions(vectors, h.dimensions); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	next := uint64(h.graph.Len())
	for i, v := range vectors {
		vec := make([]float32, h.dimensions)
		copy(vec, v)
		h.graph.Add(hnsw.MakeNode(next+uint64(i), vec))
	}
	return nil
}

// exactScanLimit is the graph size up to which Search compares the query with every
// stored vector instead of walking the graph.
const exactScanLimit = 4096

// candidateFactor widens the graph search before exact re-ranking.
const candidateFactor = 4

// Search returns up to k nearest labels ordered by ascending distance. Graphs up to
// exactScanLimit vectors are scanned exactly. Larger graphs are searched for a wider
// candidate set that is re-ranked by exact distance, so results stay approximate there.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), h.dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := h.graph.Len()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	var results []*VectorResult
	if n <= exactScanLimit {
		results = make([]*VectorResult, 0, n)
		for label := 0; label < n; label++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			v, ok := h.graph.Lookup(uint64(label))
			if !ok {
				continue
			}
			results = append(results, &VectorResult{Label: int64(label), Distance: Distance(h.metric, query, v)})
		}
	} else {
		want := k * candidateFactor
		if want < h.efSearch {
			want = h.efSearch
		}
		nodes := h.graph.Search(query, want)
		results = make([]*VectorResult, 0, len(nodes))
		for _, node := range nodes {
			results = append(results, &VectorResult{
				Label:    int64(node.Key),
				Distance: Distance(h.metric, query, node.Value),
			})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance == results[j].Distance {
			return results[i].Label < results[j].Label
		}
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Vector returns a copy of the vector stored under label.
func (h *HNSWIndex) Vector(label int64) ([]float32, bool) {
	if label < 0 {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.graph.Lookup(uint64(label))
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Save exports the graph to path through a temp file.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("index path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := h.graph.Export(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load imports the graph at path, replacing the current one.
func (h *HNSWIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	g := h.newGraph()
	// Import needs an io.ByteReader.
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	if g.Len() > 0 {
		if d := g.Dims(); d != h.dimensions {
			return fmt.Errorf("dimension mismatch: file has %d, index expects %d", d, h.dimensions)
		}
	}
	for label := 0; label < g.Len(); label++ {
		if _, ok := g.Lookup(uint64(label)); !ok {
			return fmt.Errorf("graph is missing label %d of %d", label, g.Len())
		}
	}
	h.mu.Lock()
	h.graph = g
	h.mu.Unlock()
	return nil
}

// Size returns the number of vectors in the graph.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len()
}

// Close is a no-op for HNSWIndex.
func (h *HNSWIndex) Close() error {
	return nil
}
