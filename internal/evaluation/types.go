package evaluation

import (
	"errors"
	"time"
)

// Compliance is a business outcome, not a transport error. FAIL means the
// action conflicts with the constitution, not that evaluation broke.
type Compliance string

const (
	CompliancePass    Compliance = "PASS"
	ComplianceWarning Compliance = "WARNING"
	ComplianceFail    Compliance = "FAIL"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

var ErrTenantNotFound = errors.New("tenant not found or inactive")

// ValidationError rejects malformed input before any side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(msg string) error {
	return &ValidationError{Message: msg}
}

type MatchedPrinciple struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Category   string     `json:"category"`
	Similarity float64    `json:"similarity"`
	Score      float64    `json:"score"`
	Compliance Compliance `json:"compliance"`
	Reasoning  string     `json:"reasoning"`
}

type Violation struct {
	MatchedPrinciple
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion"`
}

type Metadata struct {
	EvaluationTime      int64  `json:"evaluationTime"`
	PrinciplesEvaluated int    `json:"principlesEvaluated"`
	TenantID            *int64 `json:"tenantId"`
}

type Result struct {
	OverallScore      float64            `json:"overallScore"`
	Compliance        Compliance         `json:"compliance"`
	MatchedPrinciples []MatchedPrinciple `json:"matchedPrinciples"`
	Violations        []Violation        `json:"violations"`
	Recommendations   []string           `json:"recommendations"`
	Metadata          Metadata           `json:"metadata"`
	LogID             string             `json:"logId,omitempty"`
	Timestamp         time.Time          `json:"timestamp"`
}

type BatchStats struct {
	Total        int     `json:"total"`
	AverageScore float64 `json:"averageScore"`
	MinScore     float64 `json:"minScore"`
	MaxScore     float64 `json:"maxScore"`
	PassedCount  int     `json:"passedCount"`
	FailedCount  int     `json:"failedCount"`
}
