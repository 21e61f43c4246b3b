// Package embedding converts text into fixed-length dense vectors and
// exposes the similarity math used by retrieval.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/helix-works/recall/internal/domain"
)

// Provider defines the interface for generating embeddings.
type Provider interface {
	// Embed converts a single text into a dense vector.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds multiple texts sequentially, respecting the
	// provider's rate limit. Empty entries are filtered out first; if any
	// remaining entry fails, the whole batch fails.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the fixed output vector length.
	Dimensions() int
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// A zero vector has similarity 0 with anything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors have %d and %d dimensions: %w",
			len(a), len(b), domain.ErrDimensionMismatch)
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

// Normalize returns the unit-length copy of v. A zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}

	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
