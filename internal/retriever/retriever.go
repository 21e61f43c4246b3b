// Package retriever orchestrates query classification, similarity search,
// and multi-signal reranking over the knowledge store.
package retriever

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/helix-works/recall/internal/domain"
	"github.com/helix-works/recall/internal/store"
	"github.com/helix-works/recall/internal/telemetry"
)

const (
	// DefaultK is the number of chunks returned when the caller does not
	// specify one.
	DefaultK = 3
	// DefaultThreshold is the minimum similarity accepted from the index.
	DefaultThreshold = 0.65
	// candidateFactor widens the store request so reranking has room to
	// reorder before truncation.
	candidateFactor = 2
	// thresholdDiscount lowers the threshold for candidate retrieval; the
	// full threshold still shapes the final set through reranking.
	thresholdDiscount = 0.8
	// categoryFilterConfidence gates the intent category filter: below it,
	// intent is treated as a hint rather than a constraint.
	categoryFilterConfidence = 0.6
	// hybridVectorShare and hybridCategoryShare split k between the two
	// arms of hybrid search.
	hybridVectorShare   = 0.7
	hybridCategoryShare = 0.3
)

// Embedder is the provider surface the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the knowledge-store surface the retriever needs.
type Store interface {
	SimilaritySearch(ctx context.Context, vector []float32, params store.SearchParams) ([]domain.RetrievedChunk, error)
	GetByCategory(ctx context.Context, category domain.Category, limit int) ([]domain.RetrievedChunk, error)
	TouchQueryCount(ctx context.Context, ids []string) error
}

// Options controls one retrieval call.
type Options struct {
	K             int
	Threshold     float64
	UseIntent     bool
	RerankResults bool
}

// DefaultOptions returns the standard retrieval settings.
func DefaultOptions() Options {
	return Options{
		K:             DefaultK,
		Threshold:     DefaultThreshold,
		UseIntent:     true,
		RerankResults: true,
	}
}

func (o Options) normalized() Options {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Retriever is a stateless pipeline over immutable inputs; independent calls
// are safe to run concurrently.
type Retriever struct {
	embedder Embedder
	store    Store
	boosts   BoostConfig
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Retriever with the default boost weights.
func New(embedder Embedder, st Store, logger *zap.Logger) *Retriever {
	return NewWithBoosts(embedder, st, logger, DefaultBoosts())
}

// NewWithBoosts creates a Retriever with explicit reranking weights.
func NewWithBoosts(embedder Embedder, st Store, logger *zap.Logger, boosts BoostConfig) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		store:    st,
		boosts:   boosts,
		logger:   logger,
		now:      time.Now,
	}
}

// Retrieve returns up to opts.K chunks relevant to the query, ranked by
// score. An empty result is a valid outcome; only malformed input and
// embedding failure produce errors.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]domain.RetrievedChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyInput
	}
	opts = opts.normalized()

	var intent domain.QueryIntent
	if opts.UseIntent {
		intent = DetectIntent(query)
	}

	// The query vector is the one thing this pipeline cannot degrade
	// without: embedding failure is fatal for the call.
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	params := store.SearchParams{
		Query:     query,
		K:         opts.K * candidateFactor,
		Threshold: opts.Threshold * thresholdDiscount,
	}
	if intent.HasCategory() && intent.Confidence > categoryFilterConfidence {
		params.Category = intent.Category
	}

	results, err := r.store.SimilaritySearch(ctx, vector, params)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	// No semantic hits but strong intent: look the category up directly
	// rather than returning nothing.
	if len(results) == 0 && intent.HasCategory() {
		results, err = r.store.GetByCategory(ctx, intent.Category, opts.K)
		if err != nil {
			r.logger.Warn("category fallback failed",
				zap.Error(err),
				zap.String("category", string(intent.Category)))
			results = nil
		}
	}

	if opts.RerankResults {
		results = rerank(results, query, intent, r.boosts, r.now())
	}

	if len(results) > opts.K {
		results = results[:opts.K]
	}

	r.touchCounts(ctx, results)

	return results, nil
}

// GetContextByCategory browses one category directly, highest priority
// first. Store errors yield an empty list, never a failure.
func (r *Retriever) GetContextByCategory(ctx context.Context, category domain.Category, limit int) []domain.RetrievedChunk {
	if limit <= 0 {
		limit = 5
	}

	results, err := r.store.GetByCategory(ctx, category, limit)
	if err != nil {
		r.logger.Warn("category browse failed",
			zap.Error(err),
			zap.String("category", string(category)))
		return []domain.RetrievedChunk{}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Priority < results[j].Priority
	})

	return results
}

// HybridSearch merges vector retrieval with a category-browse arm when the
// query's intent resolves a category. Internal failures degrade to plain
// Retrieve rather than failing the request.
func (r *Retriever) HybridSearch(ctx context.Context, query string, opts Options) ([]domain.RetrievedChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.HybridSearch", telemetry.SpanAttributes{
		Operation: "hybrid_search",
	})
	defer span.End()

	opts = opts.normalized()
	k := opts.K

	vectorK := int(math.Ceil(float64(k) * hybridVectorShare))
	categoryK := int(math.Ceil(float64(k) * hybridCategoryShare))

	vectorOpts := opts
	vectorOpts.K = vectorK
	vectorResults, err := r.Retrieve(ctx, query, vectorOpts)
	if err != nil {
		r.logger.Warn("hybrid vector arm failed, falling back to plain retrieve", zap.Error(err))
		return r.Retrieve(ctx, query, opts)
	}

	merged := vectorResults
	if intent := DetectIntent(query); intent.HasCategory() {
		merged = append(merged, r.GetContextByCategory(ctx, intent.Category, categoryK)...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	merged = lo.UniqBy(merged, func(c domain.RetrievedChunk) string { return c.ID })

	if len(merged) > k {
		merged = merged[:k]
	}

	return merged, nil
}

// touchCounts bumps per-chunk usage counters. Best-effort bookkeeping only.
func (r *Retriever) touchCounts(ctx context.Context, results []domain.RetrievedChunk) {
	if len(results) == 0 {
		return
	}
	ids := lo.Map(results, func(c domain.RetrievedChunk, _ int) string { return c.ID })
	if err := r.store.TouchQueryCount(ctx, ids); err != nil {
		r.logger.Debug("query count update failed", zap.Error(err))
	}
}
