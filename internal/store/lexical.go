package store

import (
	"context"

	"github.com/helix-works/recall/internal/domain"
)

// pgLexicalSearcher implements the degraded text-search path with Postgres
// full-text search over chunk content.
type pgLexicalSearcher struct {
	db    dbtx
	score float64
}

func (l *pgLexicalSearcher) SearchContent(ctx context.Context, query string, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		limit = 3
	}

	rows, err := l.db.Query(ctx,
		`SELECT id, content, category, priority, tags, source, last_updated
		 FROM knowledge_chunks
		 WHERE active
		   AND to_tsvector('english', content) @@ websearch_to_tsquery('english', $1)
		 ORDER BY ts_rank(to_tsvector('english', content), websearch_to_tsquery('english', $1)) DESC
		 LIMIT $2`,
		query, limit,
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
		results[i].Score = l.score
	}
	return results, nil
}
