// Package vector provides distance and similarity helpers.
package vector

import (
	"fmt"
	"math"
)

// Metric selects how vector distance is measured.
type Metric string

const (
	// MetricL2 is squared Euclidean distance, as reported by a flat L2 FAISS index.
	MetricL2 Metric = "l2"
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = "cos"
)

// ParseMetric validates a metric name. Empty means l2.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricL2, "":
		return MetricL2, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown metric: %s (supported: l2, cos)", s)
	}
}

// Distance returns the distance between a and b under m.
func Distance(m Metric, a, b []float32) float64 {
	if m == MetricCosine {
		return 1 - CosineSimilarity(a, b)
	}
	return SquaredL2(a, b)
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Zero vectors have similarity 0 with everything.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}

// Normalize returns a unit-length copy of x. Zero vectors are copied unchanged.
func Normalize(x []float32) []float32 {
	out := make([]float32, len(x))
	copy(out, x)
	n := L2Norm(out)
	if n == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / n)
	}
	return out
}

func checkDimensions(vectors [][]float32, dimensions int) error {
	for i, vec := range vectors {
		if len(vec) != dimensions {
			return fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(vec), dimensions)
		}
	}
	return nil
}
