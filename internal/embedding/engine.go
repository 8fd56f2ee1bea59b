// Package embedding provides text embeddings for semantic similarity,
// with in-process memoization in front of the remote encoder.
package embedding

import (
	"context"
	"math"
)

// Engine produces a dense vector for a text
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
