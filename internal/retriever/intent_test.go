package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helix-works/recall/internal/domain"
)

func TestDetectIntent_CategoryResolution(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		category domain.Category
	}{
		{"skills query", "What programming languages do you know?", domain.CategorySkills},
		{"experience query", "Where have you worked before?", domain.CategoryExperience},
		{"projects query", "Show me a project you built", domain.CategoryProjects},
		{"education query", "What degree do you hold?", domain.CategoryEducation},
		{"contact query", "How can I reach you by email?", domain.CategoryContact},
		{"personal query", "Tell me about yourself and your hobbies", domain.CategoryPersonal},
		{"explicit category mention", "Tell me about your education", domain.CategoryEducation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := DetectIntent(tt.query)
			assert.Equal(t, tt.category, intent.Category)
			assert.True(t, intent.HasCategory())
		})
	}
}

func TestDetectIntent_NoSignal(t *testing.T) {
	tests := []string{
		"Interesting",
		"Hello there",
		"",
	}

	for _, query := range tests {
		intent := DetectIntent(query)
		assert.False(t, intent.HasCategory(), "query %q should not resolve a category", query)
		assert.Empty(t, intent.Keywords)
		assert.Equal(t, 0.0, intent.Confidence)
	}
}

func TestDetectIntent_Confidence(t *testing.T) {
	// Two strong keyword hits push confidence above the category filter gate.
	strong := DetectIntent("What programming languages do you know?")
	assert.Equal(t, domain.CategorySkills, strong.Category)
	assert.Greater(t, strong.Confidence, 0.6)

	// A single mid-weight hit resolves the category but stays low confidence.
	weak := DetectIntent("anything about your stack")
	assert.Equal(t, domain.CategorySkills, weak.Category)
	assert.LessOrEqual(t, weak.Confidence, 0.6)

	// Confidence is clamped to 1 no matter how many keywords match.
	saturated := DetectIntent("education degree university college school graduated")
	assert.Equal(t, 1.0, saturated.Confidence)
}

func TestDetectIntent_KeywordsSorted(t *testing.T) {
	intent := DetectIntent("What programming languages do you know?")
	assert.Equal(t, []string{"languages", "programming"}, intent.Keywords)
}

func TestDetectIntent_Urgency(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		priority domain.IntentPriority
	}{
		{"urgent word", "I need your email urgently", domain.IntentPriorityHigh},
		{"question word", "What are your skills?", domain.IntentPriorityHigh},
		{"hedging word", "Maybe tell me your hobbies", domain.IntentPriorityLow},
		{"neutral", "Tell me your hobbies", domain.IntentPriorityMedium},
		{"urgency wins over hedging", "Maybe tell me what you studied", domain.IntentPriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.priority, DetectIntent(tt.query).Priority)
		})
	}
}

func TestDetectIntent_Deterministic(t *testing.T) {
	query := "What programming languages do you know?"

	first := DetectIntent(query)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DetectIntent(query))
	}
}
