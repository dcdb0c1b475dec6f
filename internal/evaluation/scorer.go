package evaluation

import (
	"fmt"
	"strings"

	"github.com/saasarch/constitution-service/internal/principles"
)

// categoryAdjustment tweaks the numeric score for sensitive categories. The
// compliance label is fixed before adjustments run and is never revisited.
// Adjustments apply in declared order, each on the previous result.
type categoryAdjustment struct {
	categoryKeywords []string
	actionKeywords   []string
	apply            func(float64) float64
}

var categoryAdjustments = []categoryAdjustment{
	{
		categoryKeywords: []string{"security"},
		actionKeywords:   []string{"production", "live"},
		apply:            func(s float64) float64 { return min(s, 0.9) },
	},
	{
		categoryKeywords: []string{"privacy"},
		actionKeywords:   []string{"user data", "personal"},
		apply:            func(s float64) float64 { return min(s, 0.8) },
	},
	{
		categoryKeywords: []string{"development", "testing"},
		apply:            func(s float64) float64 { return min(s*1.1, 1.0) },
	},
}

const violationScoreCap = 0.3

// ScorePrinciple produces the per-principle verdict. Violation capping runs
// before category adjustments, so a boost can nudge the capped number but
// never clears the FAIL.
func ScorePrinciple(action string, candidate principles.PrincipleWithSimilarity) MatchedPrinciple {
	p := candidate.Principle
	similarity := candidate.Similarity

	matched := MatchedPrinciple{
		ID:         p.ID,
		Text:       p.Text,
		Category:   p.Category,
		Similarity: similarity,
		Score:      similarity,
	}

	tags := DetectViolations(action, p.Text)

	switch {
	case len(tags) > 0:
		matched.Score = min(matched.Score, violationScoreCap)
		matched.Compliance = ComplianceFail
		matched.Reasoning = "Potential violations detected: " + joinTags(tags)
	case similarity < 0.5:
		matched.Compliance = ComplianceWarning
		matched.Reasoning = "Low similarity to this principle; may require manual review"
	case similarity < 0.7:
		matched.Compliance = ComplianceWarning
		matched.Reasoning = "Moderate alignment with this principle"
	default:
		matched.Compliance = CompliancePass
		matched.Reasoning = "Good alignment with this principle"
	}

	matched.Score = adjustForCategory(matched.Score, p.Category, action)

	if matched.Score < 0 {
		matched.Score = 0
	}
	if matched.Score > 1 {
		matched.Score = 1
	}

	return matched
}

func adjustForCategory(score float64, category, action string) float64 {
	categoryLower := strings.ToLower(category)
	actionLower := strings.ToLower(action)

	for _, adj := range categoryAdjustments {
		if !containsAny(categoryLower, adj.categoryKeywords) {
			continue
		}
		if len(adj.actionKeywords) > 0 && !containsAny(actionLower, adj.actionKeywords) {
			continue
		}
		score = adj.apply(score)
	}

	return score
}

// severityFor classifies a failing principle.
func severityFor(score, similarity float64) Severity {
	switch {
	case score < 0.3 && similarity > 0.7:
		return SeverityHigh
	case score < 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// suggestionFor maps the violated principle's category to a remediation hint.
func suggestionFor(category string) string {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "security"):
		return "Implement proper security measures and access controls"
	case strings.Contains(c, "privacy"):
		return "Ensure data protection and obtain user consent"
	case strings.Contains(c, "quality"):
		return "Implement comprehensive testing and code review"
	case strings.Contains(c, "compliance"):
		return "Review relevant regulations and ensure adherence"
	default:
		return fmt.Sprintf("Review the action against the %s principle and adjust accordingly", category)
	}
}

func joinTags(tags []ViolationTag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, ", ")
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
