package vectorstore

import (
	"math"

	"github.com/hyperjump/mcqgen/internal/vector"
)

// MaximalMarginalRelevance picks up to k candidates, starting with the one most similar
// to query and then repeatedly the one maximizing
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, s) for s already selected)
//
// using cosine similarity. It returns candidate indexes in selection order with
// their scores. Ties go to the earlier candidate.
func MaximalMarginalRelevance(query []float32, candidates [][]float32, lambda float64, k int) ([]int, []float64) {
	n := len(candidates)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	simToQuery := make([]float64, n)
	for i, c := range candidates {
		simToQuery[i] = vector.CosineSimilarity(query, c)
	}
	// maxSimToSelected[i] is the highest similarity of candidate i to any selected one.
	maxSimToSelected := make([]float64, n)
	for i := range maxSimToSelected {
		maxSimToSelected[i] = math.Inf(-1)
	}
	selected := make([]bool, n)
	idxs := make([]int, 0, k)
	scores := make([]float64, 0, k)

	first := 0
	for i := 1; i < n; i++ {
		if simToQuery[i] > simToQuery[first] {
			first = i
		}
	}
	pick := func(i int, score float64) {
		selected[i] = true
		idxs = append(idxs, i)
		scores = append(scores, score)
		for j, c := range candidates {
			if selected[j] {
				continue
			}
			if s := vector.CosineSimilarity(c, candidates[i]); s > maxSimToSelected[j] {
				maxSimToSelected[j] = s
			}
		}
	}
	pick(first, lambda*simToQuery[first])

	for len(idxs) < k {
		best, bestScore := -1, math.Inf(-1)
		for i := 0; i < n; i++ {
			if selected[i] {
				continue
			}
			score := lambda*simToQuery[i] - (1-lambda)*maxSimToSelected[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		pick(best, bestScore)
	}
	return idxs, scores
}
