package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/principles"
	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
	"github.com/saasarch/constitution-service/pkg/logger"
)

const noPrinciplesRecommendation = "No constitutional principles found for this action; consider adding relevant principles"

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Finder interface {
	FindCandidates(ctx context.Context, queryVector []float32, tenantID *int64, minSimilarity float64, limit int) ([]principles.PrincipleWithSimilarity, error)
}

type TenantStore interface {
	GetTenant(id int64) (*models.Tenant, error)
}

type AuditLog interface {
	InsertEvaluationLog(log *models.EvaluationLog) error
}

type Config struct {
	Embedder        Embedder
	Finder          Finder
	Tenants         TenantStore
	Audit           AuditLog
	MinSimilarity   float64
	CandidateLimit  int
	MaxActionLength int
	MaxBatchSize    int
	BatchWorkers    int

	// OnLogged fires after an evaluation log record is persisted. Used by the
	// websocket audit tail.
	OnLogged func(models.EvaluationLog)
}

// Evaluator is a stateless pipeline over a snapshot of principles: embed the
// action, retrieve candidates, score each, aggregate. Identical inputs against
// an unchanged principle set produce identical results.
type Evaluator struct {
	embedder        Embedder
	finder          Finder
	tenants         TenantStore
	audit           AuditLog
	minSimilarity   float64
	candidateLimit  int
	maxActionLength int
	maxBatchSize    int
	batchWorkers    int
	onLogged        func(models.EvaluationLog)
}

func NewEvaluator(cfg Config) *Evaluator {
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = 0.3
	}
	if cfg.CandidateLimit == 0 {
		cfg.CandidateLimit = 20
	}
	if cfg.MaxActionLength == 0 {
		cfg.MaxActionLength = 10000
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.BatchWorkers == 0 {
		cfg.BatchWorkers = 4
	}

	return &Evaluator{
		embedder:        cfg.Embedder,
		finder:          cfg.Finder,
		tenants:         cfg.Tenants,
		audit:           cfg.Audit,
		minSimilarity:   cfg.MinSimilarity,
		candidateLimit:  cfg.CandidateLimit,
		maxActionLength: cfg.MaxActionLength,
		maxBatchSize:    cfg.MaxBatchSize,
		batchWorkers:    cfg.BatchWorkers,
		onLogged:        cfg.OnLogged,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, action string, tenantID *int64, metadata map[string]interface{}) (*Result, error) {
	if err := e.validateAction(action); err != nil {
		return nil, err
	}

	if err := e.checkTenant(tenantID); err != nil {
		return nil, err
	}

	start := time.Now()

	vector, err := e.embedder.Embed(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("failed to embed action: %w", err)
	}

	candidates, err := e.finder.FindCandidates(ctx, vector, tenantID, e.minSimilarity, e.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve principles: %w", err)
	}

	var result *Result
	if len(candidates) == 0 {
		result = e.neutralResult(tenantID, start)
	} else {
		result = e.aggregate(action, tenantID, candidates, start)
	}

	e.persist(action, tenantID, metadata, result)

	logger.Info("Action evaluated",
		zap.String("log_id", result.LogID),
		zap.Float64("overall_score", result.OverallScore),
		zap.String("compliance", string(result.Compliance)),
		zap.Int("principles_evaluated", result.Metadata.PrinciplesEvaluated),
		zap.Int64("duration_ms", result.Metadata.EvaluationTime),
	)

	return result, nil
}

// EvaluateBatch validates every action before evaluating any, then evaluates
// concurrently and returns results in input order.
func (e *Evaluator) EvaluateBatch(ctx context.Context, actions []string, tenantID *int64, metadata map[string]interface{}) ([]Result, *BatchStats, error) {
	if len(actions) == 0 {
		return nil, nil, validationErrorf("actions must contain at least 1 item")
	}
	if len(actions) > e.maxBatchSize {
		return nil, nil, validationErrorf(fmt.Sprintf("actions must contain at most %d items", e.maxBatchSize))
	}

	for i, action := range actions {
		if err := e.validateAction(action); err != nil {
			return nil, nil, validationErrorf(fmt.Sprintf("action %d: %v", i, err))
		}
	}

	if err := e.checkTenant(tenantID); err != nil {
		return nil, nil, err
	}

	results := make([]Result, len(actions))
	errs := make([]error, len(actions))

	sem := make(chan struct{}, e.batchWorkers)
	var wg sync.WaitGroup

	for i, action := range actions {
		wg.Add(1)
		go func(i int, action string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := e.Evaluate(ctx, action, tenantID, metadata)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = *res
		}(i, action)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	stats := computeBatchStats(results)

	logger.Info("Batch evaluated",
		zap.Int("total", stats.Total),
		zap.Float64("average_score", stats.AverageScore),
		zap.Int("passed", stats.PassedCount),
		zap.Int("failed", stats.FailedCount),
	)

	return results, stats, nil
}

func (e *Evaluator) validateAction(action string) error {
	if strings.TrimSpace(action) == "" {
		return validationErrorf("action is required")
	}
	if len(action) > e.maxActionLength {
		return validationErrorf(fmt.Sprintf("action exceeds maximum length of %d characters", e.maxActionLength))
	}
	return nil
}

func (e *Evaluator) checkTenant(tenantID *int64) error {
	if tenantID == nil {
		return nil
	}

	tenant, err := e.tenants.GetTenant(*tenantID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return ErrTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to resolve tenant: %w", err)
	}
	if !tenant.IsActive {
		return ErrTenantNotFound
	}

	return nil
}

// neutralResult is the defined terminal path when retrieval finds nothing:
// a WARNING at 0.5, not an error.
func (e *Evaluator) neutralResult(tenantID *int64, start time.Time) *Result {
	return &Result{
		OverallScore:      0.5,
		Compliance:        ComplianceWarning,
		MatchedPrinciples: []MatchedPrinciple{},
		Violations:        []Violation{},
		Recommendations:   []string{noPrinciplesRecommendation},
		Metadata: Metadata{
			EvaluationTime:      time.Since(start).Milliseconds(),
			PrinciplesEvaluated: 0,
			TenantID:            tenantID,
		},
		Timestamp: time.Now(),
	}
}

func (e *Evaluator) aggregate(action string, tenantID *int64, candidates []principles.PrincipleWithSimilarity, start time.Time) *Result {
	matched := make([]MatchedPrinciple, 0, len(candidates))
	violations := make([]Violation, 0)

	for _, candidate := range candidates {
		mp := ScorePrinciple(action, candidate)
		matched = append(matched, mp)

		if mp.Compliance == ComplianceFail {
			violations = append(violations, Violation{
				MatchedPrinciple: mp,
				Severity:         severityFor(mp.Score, mp.Similarity),
				Suggestion:       suggestionFor(mp.Category),
			})
		}
	}

	overall := weightedScore(matched)
	compliance := overallCompliance(overall, violations)
	recommendations := buildRecommendations(matched, violations)

	return &Result{
		OverallScore:      overall,
		Compliance:        compliance,
		MatchedPrinciples: matched,
		Violations:        violations,
		Recommendations:   recommendations,
		Metadata: Metadata{
			EvaluationTime:      time.Since(start).Milliseconds(),
			PrinciplesEvaluated: len(matched),
			TenantID:            tenantID,
		},
		Timestamp: time.Now(),
	}
}

// weightedScore is the similarity-weighted mean of per-principle scores;
// defaults to 0.5 when total weight is zero.
func weightedScore(matched []MatchedPrinciple) float64 {
	var weightedSum, totalWeight float64
	for _, mp := range matched {
		weightedSum += mp.Score * mp.Similarity
		totalWeight += mp.Similarity
	}

	if totalWeight == 0 {
		return 0.5
	}

	return weightedSum / totalWeight
}

func overallCompliance(overall float64, violations []Violation) Compliance {
	for _, v := range violations {
		if v.Severity == SeverityHigh {
			return ComplianceFail
		}
	}
	if overall < 0.5 {
		return ComplianceFail
	}
	if len(violations) > 0 || overall < 0.7 {
		return ComplianceWarning
	}
	return CompliancePass
}

func buildRecommendations(matched []MatchedPrinciple, violations []Violation) []string {
	var recommendations []string

	seen := make(map[string]bool)
	for _, v := range violations {
		key := strings.ToLower(v.Category)
		if seen[key] {
			continue
		}
		seen[key] = true
		recommendations = append(recommendations, fmt.Sprintf("Review and strengthen %s practices", v.Category))
	}

	for _, v := range violations {
		if v.Severity == SeverityHigh {
			recommendations = append([]string{"Address high-severity violations immediately"}, recommendations...)
			break
		}
	}

	for _, mp := range matched {
		if mp.Score < 0.6 {
			recommendations = append(recommendations, "Consider revising the action to better align with constitutional principles")
			break
		}
	}

	if len(matched) < 3 {
		recommendations = append(recommendations, "Consider adding more specific principles for better evaluation coverage")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Action appears to be in good compliance with constitutional principles")
	}

	return recommendations
}

func computeBatchStats(results []Result) *BatchStats {
	stats := &BatchStats{Total: len(results)}
	if len(results) == 0 {
		return stats
	}

	stats.MinScore = results[0].OverallScore
	stats.MaxScore = results[0].OverallScore

	var sum float64
	for _, r := range results {
		sum += r.OverallScore
		if r.OverallScore < stats.MinScore {
			stats.MinScore = r.OverallScore
		}
		if r.OverallScore > stats.MaxScore {
			stats.MaxScore = r.OverallScore
		}
		if r.OverallScore >= 0.7 {
			stats.PassedCount++
		} else {
			stats.FailedCount++
		}
	}

	stats.AverageScore = sum / float64(len(results))

	return stats
}

// persist appends the audit record. A write failure is reported but never
// masks the computed result from the caller.
func (e *Evaluator) persist(action string, tenantID *int64, metadata map[string]interface{}, result *Result) {
	if e.audit == nil {
		return
	}

	result.LogID = uuid.New().String()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		logger.Error("Failed to serialize evaluation result", zap.Error(err))
		return
	}

	metadataJSON := ""
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(data)
		}
	}

	record := models.EvaluationLog{
		ID:                  result.LogID,
		TenantID:            tenantID,
		Action:              action,
		ResultJSON:          string(resultJSON),
		OverallScore:        result.OverallScore,
		Compliance:          string(result.Compliance),
		PrinciplesEvaluated: result.Metadata.PrinciplesEvaluated,
		DurationMS:          result.Metadata.EvaluationTime,
		MetadataJSON:        metadataJSON,
		CreatedAt:           result.Timestamp,
	}

	if err := e.audit.InsertEvaluationLog(&record); err != nil {
		logger.Error("Failed to persist evaluation log", zap.String("log_id", record.ID), zap.Error(err))
		return
	}

	if e.onLogged != nil {
		e.onLogged(record)
	}
}
