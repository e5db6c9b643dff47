//go:build faiss && cgo
// +build faiss,cgo

// Package vector provides a FAISS-based flat vector index.
package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"
)

// FAISSIndex wraps a flat FAISS index. l2 uses IndexFlatL2 (squared distances);
// cos uses IndexFlatIP over normalized vectors and reports 1 - inner product.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	metric     Metric
	mu         sync.RWMutex
}

// NewFAISSIndex creates a flat FAISS index with the given dimension and metric.
func NewFAISSIndex(dimensions int, metric Metric) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	index, err := newFlatIndex(dimensions, m)
	if err != nil {
		return nil, err
	}
	return &FAISSIndex{index: index, dimensions: dimensions, metric: m}, nil
}

func newFlatIndex(dimensions int, m Metric) (*C.FaissIndex, error) {
	if m == MetricCosine {
		var ip *C.FaissIndexFlatIP
		if ret := C.faiss_IndexFlatIP_new_with(&ip, C.idx_t(dimensions)); ret != 0 {
			return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
		}
		return (*C.FaissIndex)(ip), nil
	}
	var l2 *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&l2, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return (*C.FaissIndex)(l2), nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Metric returns the distance metric.
func (f *FAISSIndex) Metric() Metric {
	return f.metric
}

func (f *FAISSIndex) prepare(v []float32) []float32 {
	if f.metric == MetricCosine {
		return Normalize(v)
	}
	return v
}

// Add appends vectors; FAISS assigns sequential labels.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := checkDimensions(vectors, f.dimensions); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	// Flatten vectors into contiguous array for FAISS
	n := len(vectors)
	flat := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], f.prepare(vec))
	}
	ret := C.faiss_Index_add(f.index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns up to k labels ordered by ascending distance.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}
	q := f.prepare(query)
	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	results := make([]*VectorResult, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue
		}
		d := float64(distances[i])
		if f.metric == MetricCosine {
			d = 1 - d
		}
		results = append(results, &VectorResult{Label: labels[i], Distance: d})
	}
	return results, nil
}

// Vector reconstructs the vector stored under label.
func (f *FAISSIndex) Vector(label int64) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if label < 0 || label >= int64(C.faiss_Index_ntotal(f.index)) {
		return nil, false
	}
	out := make([]float32, f.dimensions)
	if ret := C.faiss_Index_reconstruct(f.index, C.idx_t(label), (*C.float)(unsafe.Pointer(&out[0]))); ret != 0 {
		return nil, false
	}
	return out, true
}

// Save writes the index to path through a temp file.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("index path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	cPath := C.CString(tmp)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		os.Remove(tmp)
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load reads the index at path, replacing the current one.
func (f *FAISSIndex) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", d, f.dimensions)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	return nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
