package embedding

import (
	"errors"
	"math"
	"sort"
)

var ErrDimensionMismatch = errors.New("vector dimensions do not match")

// Cosine computes cosine similarity between two vectors, always in [-1, 1].
// Returns 0 when either vector has zero norm.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

type Candidate[T any] struct {
	Vector  []float32
	Payload T
}

type Match[T any] struct {
	Similarity float64
	Payload    T
}

// TopK ranks candidates by cosine similarity to the query, descending, ties
// keeping original candidate order, truncated to k.
func TopK[T any](query []float32, candidates []Candidate[T], k int) ([]Match[T], error) {
	matches := make([]Match[T], 0, len(candidates))

	for _, cand := range candidates {
		sim, err := Cosine(query, cand.Vector)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match[T]{Similarity: sim, Payload: cand.Payload})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}
