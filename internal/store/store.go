// Package store persists knowledge chunks and performs similarity search
// with a degraded lexical fallback path.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/helix-works/recall/internal/domain"
	"github.com/helix-works/recall/internal/embedding"
	"github.com/helix-works/recall/internal/index"
)

const (
	// DefaultCandidateMultiplier controls over-fetch: the index is asked
	// for k*multiplier candidates so downstream reranking has real signal.
	DefaultCandidateMultiplier = 10
	// DefaultFallbackScore is the fixed confidence assigned to lexical
	// fallback results when the vector index is degraded.
	DefaultFallbackScore = 0.3
)

// defaultIngestLimit spaces embedding calls during bulk ingestion.
var defaultIngestLimit = rate.Every(200 * time.Millisecond)

// dbtx is the subset of pgx operations the store needs, satisfied by both
// *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// lexicalSearcher is the degraded-path text search, abstracted so the
// fallback behavior is unit-testable.
type lexicalSearcher interface {
	SearchContent(ctx context.Context, query string, limit int) ([]domain.RetrievedChunk, error)
}

// Config holds the store's tunable search constants.
type Config struct {
	CandidateMultiplier int
	FallbackScore       float64
	IngestRateLimit     rate.Limit
	IngestBurst         int
}

func (c Config) withDefaults() Config {
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if c.FallbackScore <= 0 {
		c.FallbackScore = DefaultFallbackScore
	}
	if c.IngestRateLimit == 0 {
		c.IngestRateLimit = defaultIngestLimit
	}
	if c.IngestBurst <= 0 {
		c.IngestBurst = 1
	}
	return c
}

// SearchParams drives one similarity search.
type SearchParams struct {
	// Query is the raw query text, used only by the lexical fallback.
	Query     string
	K         int
	Threshold float64
	Category  domain.Category
}

// KnowledgeStore persists chunks and searches them. All calls are stateless;
// the only shared resource is the underlying database.
type KnowledgeStore struct {
	db       dbtx
	index    index.VectorIndex
	provider embedding.Provider
	lexical  lexicalSearcher
	limiter  *rate.Limiter
	logger   *zap.Logger
	cfg      Config
}

// New creates a KnowledgeStore over the given pool and vector index.
func New(pool *pgxpool.Pool, idx index.VectorIndex, provider embedding.Provider, logger *zap.Logger, cfg Config) *KnowledgeStore {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeStore{
		db:       pool,
		index:    idx,
		provider: provider,
		lexical:  &pgLexicalSearcher{db: pool, score: cfg.FallbackScore},
		limiter:  rate.NewLimiter(cfg.IngestRateLimit, cfg.IngestBurst),
		logger:   logger,
		cfg:      cfg,
	}
}

// AddDocuments embeds and persists chunks one at a time behind the ingestion
// token bucket. Chunks persisted before a failure stay persisted; the error
// propagates so the caller can retry the batch.
func (s *KnowledgeStore) AddDocuments(ctx context.Context, inputs []domain.ChunkInput) error {
	for i, in := range inputs {
		if err := domain.ValidateChunkInput(in); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}

	for i, in := range inputs {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		vector, err := s.provider.Embed(ctx, in.Content)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}

		now := time.Now().UTC()
		chunk := domain.KnowledgeChunk{
			ID:          uuid.NewString(),
			Content:     in.Content,
			Embedding:   vector,
			Category:    in.Category,
			Priority:    in.Priority,
			Tags:        domain.NormalizeTags(in.Tags),
			Source:      in.Source,
			Version:     1,
			Active:      true,
			CreatedAt:   now,
			LastUpdated: now,
		}

		if err := s.insertChunk(ctx, chunk); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}

	return nil
}

// SimilaritySearch queries the vector index with an over-fetched candidate
// count and filters by threshold. On index failure it degrades to lexical
// search instead of raising; a dimension mismatch is a hard provider error.
func (s *KnowledgeStore) SimilaritySearch(ctx context.Context, vector []float32, params SearchParams) ([]domain.RetrievedChunk, error) {
	if len(vector) != s.provider.Dimensions() {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d: %w",
			len(vector), s.provider.Dimensions(), domain.ErrDimensionMismatch)
	}

	k := params.K
	if k <= 0 {
		k = 3
	}
	candidates := k * s.cfg.CandidateMultiplier

	results, err := s.index.Search(ctx, vector, candidates, index.Filter{Category: params.Category})
	if err != nil {
		s.logger.Warn("vector index unavailable, falling back to lexical search",
			zap.Error(err),
			zap.String("query", params.Query))
		return s.lexicalFallback(ctx, params.Query, k)
	}

	filtered := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= params.Threshold {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// lexicalFallback returns text-search matches at a fixed degraded confidence.
// A failing fallback yields an empty result set, never an error: full
// degradation looks like "nothing found" to the caller.
func (s *KnowledgeStore) lexicalFallback(ctx context.Context, query string, limit int) ([]domain.RetrievedChunk, error) {
	if query == "" {
		return []domain.RetrievedChunk{}, nil
	}

	results, err := s.lexical.SearchContent(ctx, query, limit)
	if err != nil {
		s.logger.Error("lexical fallback failed", zap.Error(err), zap.String("query", query))
		return []domain.RetrievedChunk{}, nil
	}

	return results, nil
}

// GetByCategory returns chunks of exactly one category, highest priority
// first, most recent first within a priority. Each result carries a maximal
// score: this path represents certainty, not similarity.
func (s *KnowledgeStore) GetByCategory(ctx context.Context, category domain.Category, limit int) ([]domain.RetrievedChunk, error) {
	if !domain.IsValidCategory(category) {
		return nil, domain.ErrInvalidCategory
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, content, category, priority, tags, source, last_updated
		 FROM knowledge_chunks
		 WHERE category = $1 AND active
		 ORDER BY priority ASC, last_updated DESC
		 LIMIT $2`,
		string(category), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := scanChunkRows(rows)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Score = 1.0
	}
	return results, nil
}

// ClearAll deletes every chunk and returns the count deleted. Used only by
// ingestion tooling.
func (s *KnowledgeStore) ClearAll(ctx context.Context) (int64, error) {
	cmdTag, err := s.db.Exec(ctx, `DELETE FROM knowledge_chunks`)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// Count returns the total number of stored chunks.
func (s *KnowledgeStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExportAll returns every active chunk in the ingestion input shape, so an
// exported corpus can be re-ingested as-is. Embeddings are not exported;
// re-ingestion recomputes them.
func (s *KnowledgeStore) ExportAll(ctx context.Context) ([]domain.ChunkInput, error) {
	rows, err := s.db.Query(ctx,
		`SELECT content, category, priority, tags, source
		 FROM knowledge_chunks
		 WHERE active
		 ORDER BY category ASC, priority ASC, created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChunkInput
	for rows.Next() {
		var in domain.ChunkInput
		var category string
		if err := rows.Scan(&in.Content, &category, &in.Priority, &in.Tags, &in.Source); err != nil {
			return nil, err
		}
		in.Category = domain.Category(category)
		out = append(out, in)
	}
	return out, rows.Err()
}

// TouchQueryCount bumps the bookkeeping counter on the given chunks.
// Best-effort: retrieval correctness never depends on it.
func (s *KnowledgeStore) TouchQueryCount(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE knowledge_chunks SET query_count = query_count + 1 WHERE id = ANY($1)`,
		ids,
	)
	return err
}

func (s *KnowledgeStore) insertChunk(ctx context.Context, c domain.KnowledgeChunk) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO knowledge_chunks
			(id, content, embedding, category, priority, tags, source, version, query_count, active, created_at, last_updated)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID,
		c.Content,
		pgvector.NewVector(c.Embedding),
		string(c.Category),
		c.Priority,
		c.Tags,
		c.Source,
		c.Version,
		c.QueryCount,
		c.Active,
		c.CreatedAt,
		c.LastUpdated,
	)
	return err
}

func scanChunkRows(rows pgx.Rows) ([]domain.RetrievedChunk, error) {
	var results []domain.RetrievedChunk
	for rows.Next() {
		var c domain.RetrievedChunk
		var category string
		if err := rows.Scan(&c.ID, &c.Content, &category, &c.Priority, &c.Tags, &c.Source, &c.LastUpdated); err != nil {
			return nil, err
		}
		c.Category = domain.Category(category)
		results = append(results, c)
	}
	return results, rows.Err()
}
