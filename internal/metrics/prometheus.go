package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "constitution_evaluation_duration_seconds",
			Help:    "Evaluation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"mode"},
	)

	EvaluationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constitution_evaluation_total",
			Help: "Total evaluations by compliance outcome",
		},
		[]string{"compliance"},
	)

	OverallScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "constitution_overall_score",
			Help:    "Distribution of overall compliance scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	PrinciplesMatched = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "constitution_principles_matched",
			Help:    "Number of principles matched per evaluation",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	ViolationsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constitution_violations_detected_total",
			Help: "Total violations by severity",
		},
		[]string{"severity"},
	)

	EvaluationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constitution_evaluation_errors_total",
			Help: "Evaluation failures by kind",
		},
		[]string{"kind"},
	)

	EmbeddingCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "constitution_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		},
	)

	EmbeddingCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "constitution_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)
)

func Init() {
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(EvaluationTotal)
	prometheus.MustRegister(OverallScore)
	prometheus.MustRegister(PrinciplesMatched)
	prometheus.MustRegister(ViolationsDetected)
	prometheus.MustRegister(EvaluationErrors)
	prometheus.MustRegister(EmbeddingCacheHits)
	prometheus.MustRegister(EmbeddingCacheMisses)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
