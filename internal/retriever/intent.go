package retriever

import (
	"sort"
	"strings"

	"github.com/helix-works/recall/internal/domain"
)

// Intent detection is a deterministic keyword classifier, not a statistical
// model. The tables below are pure data: category -> keyword -> weight,
// tuned by hand and versioned here so they can be tested and adjusted
// without touching the matching logic.

const (
	// exactCategoryBonus is added when the query names the category
	// outright ("skills", "about skills").
	exactCategoryBonus = 2.0
	// minCategoryScore is the acceptance threshold: below it we refuse to
	// guess a category on weak signal.
	minCategoryScore = 0.5
)

var intentKeywords = map[domain.Category]map[string]float64{
	domain.CategoryPersonal: {
		"yourself":  1.0,
		"who are":   1.0,
		"hobbies":   1.0,
		"interests": 0.8,
		"hobby":     0.9,
		"person":    0.5,
		"fun":       0.5,
		"free time": 0.8,
	},
	domain.CategorySkills: {
		"skill":        1.0,
		"programming":  1.0,
		"languages":    0.8,
		"technologies": 1.0,
		"technology":   0.8,
		"frameworks":   0.9,
		"tools":        0.7,
		"stack":        0.8,
		"proficient":   0.9,
		"expertise":    0.9,
		"know how":     0.6,
	},
	domain.CategoryExperience: {
		"experience": 1.2,
		"worked":     0.9,
		"work":       0.8,
		"job":        0.9,
		"career":     0.9,
		"company":    0.7,
		"employer":   0.8,
		"position":   0.6,
		"role":       0.6,
	},
	domain.CategoryProjects: {
		"project":   1.2,
		"built":     0.9,
		"portfolio": 0.9,
		"developed": 0.8,
		"created":   0.7,
		"github":    0.8,
		"side":      0.4,
		"demo":      0.6,
	},
	domain.CategoryEducation: {
		"education":     1.2,
		"degree":        1.0,
		"university":    1.0,
		"studied":       0.9,
		"college":       0.9,
		"school":        0.8,
		"certification": 0.8,
		"course":        0.6,
		"graduated":     0.9,
	},
	domain.CategoryContact: {
		"contact":   1.2,
		"email":     1.0,
		"phone":     0.9,
		"linkedin":  0.9,
		"reach":     0.8,
		"hire":      0.7,
		"touch":     0.6,
		"available": 0.6,
	},
}

var urgencyWords = []string{"urgent", "asap", "immediately", "when", "how", "what"}

var hedgingWords = []string{"maybe", "perhaps", "might"}

// DetectIntent classifies what category of fact a query is probably asking
// about. It is pure and deterministic: the same query always yields the same
// intent.
func DetectIntent(query string) domain.QueryIntent {
	q := strings.ToLower(strings.TrimSpace(query))

	var best domain.Category
	var bestScore float64
	var bestKeywords []string

	// Iterate in declaration order so ties resolve deterministically.
	for _, category := range domain.Categories() {
		score := 0.0
		var matched []string

		for keyword, weight := range intentKeywords[category] {
			if strings.Contains(q, keyword) {
				score += weight
				matched = append(matched, keyword)
			}
		}

		if q == string(category) || strings.Contains(q, "about "+string(category)) {
			score += exactCategoryBonus
		}

		if score > bestScore {
			best = category
			bestScore = score
			bestKeywords = matched
		}
	}

	sort.Strings(bestKeywords)

	intent := domain.QueryIntent{
		Keywords:   bestKeywords,
		Priority:   detectUrgency(q),
		Confidence: clamp01(bestScore / 2.0),
	}
	if bestScore > minCategoryScore {
		intent.Category = best
	}
	return intent
}

func detectUrgency(q string) domain.IntentPriority {
	for _, w := range urgencyWords {
		if strings.Contains(q, w) {
			return domain.IntentPriorityHigh
		}
	}
	for _, w := range hedgingWords {
		if strings.Contains(q, w) {
			return domain.IntentPriorityLow
		}
	}
	return domain.IntentPriorityMedium
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
