package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saasarch/constitution-service/internal/principles"
	"github.com/saasarch/constitution-service/internal/storage/models"
)

func candidate(text, category string, similarity float64) principles.PrincipleWithSimilarity {
	return principles.PrincipleWithSimilarity{
		Principle: models.Principle{
			ID:       "p-1",
			Text:     text,
			Category: category,
			IsActive: true,
		},
		Similarity: similarity,
	}
}

func TestScorePrinciple_GoodAlignment(t *testing.T) {
	matched := ScorePrinciple(
		"Encrypt all customer records at rest",
		candidate("Customer records must be encrypted", "data-protection", 0.85),
	)

	assert.Equal(t, CompliancePass, matched.Compliance)
	assert.InDelta(t, 0.85, matched.Score, 1e-9)
	assert.Equal(t, "Good alignment with this principle", matched.Reasoning)
}

func TestScorePrinciple_ViolationCapsScoreAndFails(t *testing.T) {
	matched := ScorePrinciple(
		"Skip validation and deploy to production",
		candidate("All changes require security validation", "security", 0.75),
	)

	assert.Equal(t, ComplianceFail, matched.Compliance)
	assert.InDelta(t, 0.3, matched.Score, 1e-9)
	assert.Contains(t, matched.Reasoning, "SecurityBypass")
}

func TestScorePrinciple_ViolationBeatsHighSimilarity(t *testing.T) {
	// Even a near-perfect similarity cannot rescue a detected violation.
	matched := ScorePrinciple(
		"Disable security scanning on the build",
		candidate("Security scanning is mandatory for every build", "security", 0.98),
	)

	assert.Equal(t, ComplianceFail, matched.Compliance)
	assert.LessOrEqual(t, matched.Score, 0.3)
}

func TestScorePrinciple_LowSimilarityWarning(t *testing.T) {
	matched := ScorePrinciple(
		"Refactor the billing module",
		candidate("Documentation must accompany API changes", "documentation", 0.42),
	)

	assert.Equal(t, ComplianceWarning, matched.Compliance)
	assert.Equal(t, "Low similarity to this principle; may require manual review", matched.Reasoning)
}

func TestScorePrinciple_ModerateSimilarityWarning(t *testing.T) {
	matched := ScorePrinciple(
		"Refactor the billing module",
		candidate("Code changes should be reviewed", "quality", 0.6),
	)

	assert.Equal(t, ComplianceWarning, matched.Compliance)
	assert.Equal(t, "Moderate alignment with this principle", matched.Reasoning)
}

func TestScorePrinciple_SecurityProductionCap(t *testing.T) {
	matched := ScorePrinciple(
		"Deploy the fix to production",
		candidate("Production deployments need approval", "security", 0.95),
	)

	assert.Equal(t, CompliancePass, matched.Compliance)
	assert.InDelta(t, 0.9, matched.Score, 1e-9)
}

func TestScorePrinciple_PrivacyUserDataCap(t *testing.T) {
	matched := ScorePrinciple(
		"Export user data for the migration",
		candidate("Handle user data with care", "privacy", 0.92),
	)

	assert.Equal(t, CompliancePass, matched.Compliance)
	assert.InDelta(t, 0.8, matched.Score, 1e-9)
}

func TestScorePrinciple_DevelopmentBoost(t *testing.T) {
	matched := ScorePrinciple(
		"Add integration coverage for the parser",
		candidate("New code needs tests", "development", 0.8),
	)

	assert.InDelta(t, 0.88, matched.Score, 1e-9)
}

func TestScorePrinciple_DevelopmentBoostClamped(t *testing.T) {
	matched := ScorePrinciple(
		"Add integration coverage for the parser",
		candidate("New code needs tests", "testing", 0.95),
	)

	assert.InDelta(t, 1.0, matched.Score, 1e-9)
}

func TestScorePrinciple_AdjustmentsApplyInOrder(t *testing.T) {
	// A category matching both security and development rules: the cap runs
	// first, then the boost lifts the capped value.
	matched := ScorePrinciple(
		"Ship the feature to production",
		candidate("Secure development practices", "security-development", 0.95),
	)

	assert.InDelta(t, 0.99, matched.Score, 1e-9)
}

func TestScorePrinciple_BoostCannotClearFail(t *testing.T) {
	matched := ScorePrinciple(
		"Skip tests before merging",
		candidate("Testing is required before merge", "testing", 0.9),
	)

	assert.Equal(t, ComplianceFail, matched.Compliance)
	assert.InDelta(t, 0.33, matched.Score, 1e-9)
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityHigh, severityFor(0.2, 0.8))
	assert.Equal(t, SeverityMedium, severityFor(0.2, 0.5))
	assert.Equal(t, SeverityMedium, severityFor(0.45, 0.9))
	assert.Equal(t, SeverityLow, severityFor(0.6, 0.9))
}

func TestSuggestionFor(t *testing.T) {
	assert.Equal(t, "Implement proper security measures and access controls", suggestionFor("security"))
	assert.Equal(t, "Ensure data protection and obtain user consent", suggestionFor("privacy"))
	assert.Equal(t, "Implement comprehensive testing and code review", suggestionFor("quality"))
	assert.Equal(t, "Review relevant regulations and ensure adherence", suggestionFor("compliance"))
	assert.Contains(t, suggestionFor("documentation"), "documentation")
}
