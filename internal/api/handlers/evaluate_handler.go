package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/embedding"
	"github.com/saasarch/constitution-service/internal/evaluation"
	"github.com/saasarch/constitution-service/internal/metrics"
	"github.com/saasarch/constitution-service/internal/principles"
	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
	"github.com/saasarch/constitution-service/pkg/logger"
)

type EvaluateHandler struct {
	evaluator *evaluation.Evaluator
	db        *sqlite.Client
}

func NewEvaluateHandler(evaluator *evaluation.Evaluator, db *sqlite.Client) *EvaluateHandler {
	return &EvaluateHandler{
		evaluator: evaluator,
		db:        db,
	}
}

type evaluateRequest struct {
	Action   string                 `json:"action"`
	TenantID *int64                 `json:"tenantId"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (h *EvaluateHandler) Evaluate(c *fiber.Ctx) error {
	var req evaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	start := time.Now()

	result, err := h.evaluator.Evaluate(c.Context(), req.Action, req.TenantID, req.Metadata)
	if err != nil {
		return evaluationError(c, err)
	}

	recordEvaluationMetrics(result, time.Since(start), "single")

	return c.JSON(fiber.Map{"data": result})
}

type batchRequest struct {
	Actions  []string               `json:"actions"`
	TenantID *int64                 `json:"tenantId"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (h *EvaluateHandler) EvaluateBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	start := time.Now()

	results, stats, err := h.evaluator.EvaluateBatch(c.Context(), req.Actions, req.TenantID, req.Metadata)
	if err != nil {
		return evaluationError(c, err)
	}

	metrics.EvaluationDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	for i := range results {
		recordEvaluationMetrics(&results[i], 0, "")
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"results":    results,
			"batchStats": stats,
		},
	})
}

type logEntry struct {
	ID                  string    `json:"id"`
	TenantID            *int64    `json:"tenantId"`
	Action              string    `json:"action"`
	OverallScore        float64   `json:"overallScore"`
	Compliance          string    `json:"compliance"`
	PrinciplesEvaluated int       `json:"principlesEvaluated"`
	DurationMS          int64     `json:"durationMs"`
	CreatedAt           time.Time `json:"createdAt"`
}

func (h *EvaluateHandler) ListLogs(c *fiber.Ctx) error {
	filter := models.LogFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}

	if v := c.Query("tenantId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tenantId"})
		}
		filter.TenantID = &id
	}
	if v := c.Query("minScore"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid minScore"})
		}
		filter.MinScore = &score
	}
	if v := c.Query("maxScore"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid maxScore"})
		}
		filter.MaxScore = &score
	}

	logs, err := h.db.ListEvaluationLogs(filter)
	if err != nil {
		logger.Error("Failed to list evaluation logs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list evaluation logs"})
	}

	stats, err := h.db.LogStats(filter)
	if err != nil {
		logger.Error("Failed to compute log stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute log stats"})
	}

	entries := make([]logEntry, len(logs))
	for i, log := range logs {
		entries[i] = toLogEntry(log)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"logs": entries,
			"stats": fiber.Map{
				"total":        stats.Total,
				"averageScore": stats.AverageScore,
				"minScore":     stats.MinScore,
				"maxScore":     stats.MaxScore,
			},
			"pagination": fiber.Map{
				"limit":  filter.Limit,
				"offset": filter.Offset,
			},
		},
	})
}

func (h *EvaluateHandler) GetLog(c *fiber.Ctx) error {
	id := c.Params("id")

	log, err := h.db.GetEvaluationLog(id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Evaluation log not found"})
	}
	if err != nil {
		logger.Error("Failed to get evaluation log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to get evaluation log"})
	}

	entry := toLogEntry(*log)

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"id":                  entry.ID,
			"tenantId":            entry.TenantID,
			"action":              entry.Action,
			"overallScore":        entry.OverallScore,
			"compliance":          entry.Compliance,
			"principlesEvaluated": entry.PrinciplesEvaluated,
			"durationMs":          entry.DurationMS,
			"createdAt":           entry.CreatedAt,
			"result":              rawJSON(log.ResultJSON),
			"metadata":            rawJSON(log.MetadataJSON),
		},
	})
}

func (h *EvaluateHandler) DeleteLog(c *fiber.Ctx) error {
	id := c.Params("id")

	err := h.db.DeleteEvaluationLog(id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Evaluation log not found"})
	}
	if err != nil {
		logger.Error("Failed to delete evaluation log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete evaluation log"})
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": id}})
}

func (h *EvaluateHandler) Stats(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days <= 0 || days > 365 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must be between 1 and 365"})
	}

	var tenantID *int64
	if v := c.Query("tenantId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tenantId"})
		}
		tenantID = &id
	}

	distribution, err := h.db.ScoreDistribution(tenantID, days)
	if err != nil {
		logger.Error("Failed to compute score distribution", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute stats"})
	}

	daily, err := h.db.DailyStats(tenantID, days)
	if err != nil {
		logger.Error("Failed to compute daily stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute stats"})
	}

	dailyOut := make([]fiber.Map, len(daily))
	for i, d := range daily {
		dailyOut[i] = fiber.Map{
			"day":          d.Day,
			"count":        d.Count,
			"averageScore": d.AverageScore,
		}
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"days": days,
			"distribution": fiber.Map{
				"excellent": distribution.Excellent,
				"good":      distribution.Good,
				"fair":      distribution.Fair,
				"poor":      distribution.Poor,
			},
			"daily": dailyOut,
		},
	})
}

func toLogEntry(log models.EvaluationLog) logEntry {
	return logEntry{
		ID:                  log.ID,
		TenantID:            log.TenantID,
		Action:              log.Action,
		OverallScore:        log.OverallScore,
		Compliance:          log.Compliance,
		PrinciplesEvaluated: log.PrinciplesEvaluated,
		DurationMS:          log.DurationMS,
		CreatedAt:           log.CreatedAt,
	}
}

func rawJSON(s string) interface{} {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func recordEvaluationMetrics(result *evaluation.Result, duration time.Duration, mode string) {
	if mode != "" {
		metrics.EvaluationDuration.WithLabelValues(mode).Observe(duration.Seconds())
	}
	metrics.EvaluationTotal.WithLabelValues(string(result.Compliance)).Inc()
	metrics.OverallScore.Observe(result.OverallScore)
	metrics.PrinciplesMatched.Observe(float64(result.Metadata.PrinciplesEvaluated))
	for _, v := range result.Violations {
		metrics.ViolationsDetected.WithLabelValues(string(v.Severity)).Inc()
	}
}

// evaluationError maps the error taxonomy to transport statuses. Compliance
// FAIL is a 200; only system failures land here.
func evaluationError(c *fiber.Ctx, err error) error {
	var vErr *evaluation.ValidationError
	switch {
	case errors.As(err, &vErr):
		metrics.EvaluationErrors.WithLabelValues("validation").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vErr.Message})
	case errors.Is(err, evaluation.ErrTenantNotFound):
		metrics.EvaluationErrors.WithLabelValues("tenant_not_found").Inc()
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tenant not found or inactive"})
	case errors.Is(err, embedding.ErrUnavailable):
		metrics.EvaluationErrors.WithLabelValues("embedding_unavailable").Inc()
		logger.Error("Embedding provider unavailable", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Embedding provider unavailable"})
	case errors.Is(err, principles.ErrStoreUnavailable):
		metrics.EvaluationErrors.WithLabelValues("store_unavailable").Inc()
		logger.Error("Principle store unavailable", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Principle store unavailable"})
	default:
		metrics.EvaluationErrors.WithLabelValues("internal").Inc()
		logger.Error("Evaluation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to evaluate action"})
	}
}
