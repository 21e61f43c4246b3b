package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/helix-works/recall/internal/domain"
)

// PgVectorIndex implements VectorIndex over a Postgres pgvector HNSW index
// using the cosine distance operator.
type PgVectorIndex struct {
	pool *pgxpool.Pool
}

func NewPgVectorIndex(pool *pgxpool.Pool) *PgVectorIndex {
	return &PgVectorIndex{pool: pool}
}

// Search queries the knowledge_chunks table ordered by cosine distance.
// Score is 1 - distance, the cosine similarity.
func (i *PgVectorIndex) Search(ctx context.Context, vector []float32, candidates int, filter Filter) ([]domain.RetrievedChunk, error) {
	if candidates <= 0 {
		candidates = 20
	}

	vec := pgvector.NewVector(vector)

	query := `
		SELECT id, content, category, priority, tags, source, last_updated,
		       1 - (embedding <=> $1) AS score
		FROM knowledge_chunks
		WHERE active`
	args := []interface{}{vec}

	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}

	args = append(args, candidates)
	query += fmt.Sprintf(`
		ORDER BY embedding <=> $1
		LIMIT $%d`, len(args))

	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.RetrievedChunk, 0, candidates)
	for rows.Next() {
		var c domain.RetrievedChunk
		var category string
		if err := rows.Scan(&c.ID, &c.Content, &category, &c.Priority, &c.Tags, &c.Source, &c.LastUpdated, &c.Score); err != nil {
			return nil, err
		}
		c.Category = domain.Category(category)
		results = append(results, c)
	}

	return results, rows.Err()
}
