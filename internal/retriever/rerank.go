package retriever

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/helix-works/recall/internal/domain"
)

// BoostConfig holds the reranking weights. The defaults are hand-tuned
// empirical constants carried over from the reference ranking behavior;
// they are configuration, not derived values.
type BoostConfig struct {
	// PriorityStep scales the importance boost: priority 1 chunks get
	// 3*PriorityStep, priority 3 chunks get 1*PriorityStep.
	PriorityStep float64
	// CategoryMatch is added when the query intent resolved the chunk's
	// category.
	CategoryMatch float64
	// KeywordHit is added per intent keyword found in the chunk content.
	KeywordHit float64
	// TermHit is added per query term (longer than MinTermLength) found in
	// the chunk content.
	TermHit float64
	// TagHit is added per chunk tag that appears in the query.
	TagHit float64
	// Recency is added to projects and experience chunks updated within
	// RecencyWindow.
	Recency       float64
	RecencyWindow time.Duration
	MinTermLength int
}

// DefaultBoosts returns the reference weights.
func DefaultBoosts() BoostConfig {
	return BoostConfig{
		PriorityStep:  0.1,
		CategoryMatch: 0.15,
		KeywordHit:    0.1,
		TermHit:       0.05,
		TagHit:        0.08,
		Recency:       0.05,
		RecencyWindow: 30 * 24 * time.Hour,
		MinTermLength: 2,
	}
}

// recencyCategories are the categories where freshness matters to ranking.
var recencyCategories = map[domain.Category]struct{}{
	domain.CategoryProjects:   {},
	domain.CategoryExperience: {},
}

// rerank applies additive heuristic boosts on top of each chunk's raw
// similarity score, caps at 1.0, and sorts descending. Pure: the inputs are
// not mutated.
func rerank(chunks []domain.RetrievedChunk, query string, intent domain.QueryIntent, cfg BoostConfig, now time.Time) []domain.RetrievedChunk {
	queryLower := strings.ToLower(query)
	terms := queryTerms(queryLower, cfg.MinTermLength)

	out := make([]domain.RetrievedChunk, len(chunks))
	copy(out, chunks)

	for i := range out {
		c := &out[i]
		content := strings.ToLower(c.Content)
		score := c.Score

		score += cfg.PriorityStep * float64(domain.PriorityLowest+1-c.Priority)

		if intent.HasCategory() && intent.Category == c.Category {
			score += cfg.CategoryMatch
		}

		for _, kw := range intent.Keywords {
			if strings.Contains(content, kw) {
				score += cfg.KeywordHit
			}
		}

		for _, term := range terms {
			if strings.Contains(content, term) {
				score += cfg.TermHit
			}
		}

		for _, tag := range c.Tags {
			if tag != "" && strings.Contains(queryLower, tag) {
				score += cfg.TagHit
			}
		}

		if _, ok := recencyCategories[c.Category]; ok {
			if !c.LastUpdated.IsZero() && now.Sub(c.LastUpdated) <= cfg.RecencyWindow {
				score += cfg.Recency
			}
		}

		if score > 1.0 {
			score = 1.0
		}
		c.Score = score
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out
}

// queryTerms tokenizes a lower-cased query into terms longer than minLen.
func queryTerms(queryLower string, minLen int) []string {
	fields := strings.FieldsFunc(queryLower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > minLen {
			terms = append(terms, f)
		}
	}
	return terms
}
