package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies what part of a person's background a chunk describes.
// The enumeration is a closed contract shared by ingestion, storage
// validation, and intent detection.
type Category string

const (
	CategoryPersonal   Category = "personal"
	CategorySkills     Category = "skills"
	CategoryExperience Category = "experience"
	CategoryProjects   Category = "projects"
	CategoryEducation  Category = "education"
	CategoryContact    Category = "contact"
)

// Priority bounds for knowledge chunks. 1 is the highest importance.
const (
	PriorityHighest = 1
	PriorityLowest  = 3
)

// KnowledgeChunk is one atomic fact stored with its embedding and metadata.
// Chunks are created in bulk by ingestion and read many times by retrieval.
type KnowledgeChunk struct {
	ID          string
	Content     string
	Embedding   []float32
	Category    Category
	Priority    int
	Tags        []string
	Source      string
	Version     int
	QueryCount  int64
	Active      bool
	CreatedAt   time.Time
	LastUpdated time.Time
}

// ChunkInput is the ingestion-time shape of a chunk, before embedding.
type ChunkInput struct {
	Content  string   `json:"content"`
	Category Category `json:"category"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
	Source   string   `json:"source"`
}

// RetrievedChunk is produced per query and never persisted. Score is either
// a cosine similarity or a heuristic confidence, always in [0,1].
type RetrievedChunk struct {
	ID          string
	Content     string
	Category    Category
	Priority    int
	Tags        []string
	Source      string
	LastUpdated time.Time
	Score       float64
}

// IntentPriority is the urgency heuristic of a query, distinct from chunk
// priority.
type IntentPriority string

const (
	IntentPriorityHigh   IntentPriority = "high"
	IntentPriorityMedium IntentPriority = "medium"
	IntentPriorityLow    IntentPriority = "low"
)

// QueryIntent is a lightweight classification of what a query is probably
// asking about. Category is empty when no category scored above the
// acceptance threshold.
type QueryIntent struct {
	Category   Category
	Keywords   []string
	Priority   IntentPriority
	Confidence float64
}

// HasCategory reports whether intent detection resolved a category.
func (q QueryIntent) HasCategory() bool {
	return q.Category != ""
}

// Categories returns all valid categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryPersonal,
		CategorySkills,
		CategoryExperience,
		CategoryProjects,
		CategoryEducation,
		CategoryContact,
	}
}

// ParseCategory normalizes and validates a category string.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !IsValidCategory(c) {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// IsValidCategory checks membership in the closed enumeration.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryPersonal, CategorySkills, CategoryExperience,
		CategoryProjects, CategoryEducation, CategoryContact:
		return true
	}
	return false
}

// ValidateChunkInput validates an ingestion record before it is embedded.
func ValidateChunkInput(in ChunkInput) error {
	if strings.TrimSpace(in.Content) == "" {
		return NewDomainError(ErrCodeValidation, "chunk content is required")
	}
	if !IsValidCategory(in.Category) {
		return NewDomainErrorWithCause(ErrCodeValidation,
			fmt.Sprintf("chunk category is invalid: %s", in.Category), ErrInvalidCategory)
	}
	if in.Priority < PriorityHighest || in.Priority > PriorityLowest {
		return NewDomainErrorWithCause(ErrCodeValidation,
			fmt.Sprintf("chunk priority must be between %d and %d", PriorityHighest, PriorityLowest), ErrInvalidPriority)
	}
	return nil
}

// NormalizeTags lower-cases and trims tags, dropping empties and duplicates.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
