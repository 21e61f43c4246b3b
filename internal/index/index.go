// Package index abstracts the external approximate-nearest-neighbor index
// used for similarity search. Implementations are swappable without touching
// store or retriever logic.
package index

import (
	"context"

	"github.com/helix-works/recall/internal/domain"
)

// Filter is an exact-match predicate on chunk metadata. A zero Filter
// matches everything.
type Filter struct {
	Category domain.Category
}

// VectorIndex performs cosine-similarity search over stored chunk embeddings.
type VectorIndex interface {
	// Search returns up to candidates chunks ordered by descending
	// similarity to vector. The candidate count is intentionally distinct
	// from the caller's final result limit so reranking has real signal.
	Search(ctx context.Context, vector []float32, candidates int, filter Filter) ([]domain.RetrievedChunk, error)
}
