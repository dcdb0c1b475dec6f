package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/metrics"
	"github.com/saasarch/constitution-service/pkg/circuitbreaker"
	"github.com/saasarch/constitution-service/pkg/logger"
	"github.com/saasarch/constitution-service/pkg/retry"
	"github.com/saasarch/constitution-service/pkg/utils"
)

var (
	// ErrUnavailable wraps any provider-side failure (network, model, quota).
	// Callers must treat it as fatal for the current evaluation.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrEmptyText is returned before any model call is attempted.
	ErrEmptyText = errors.New("text is empty")
)

// Cache is an optional (text hash -> embedding) lookaside. Embeddings are
// deterministic per model version, so exact-match caching is safe.
type Cache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Client struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	cache       Cache
	cacheTTL    time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(apiKey, model string, timeoutSec int) *Client {
	if timeoutSec <= 0 {
		timeoutSec = 15
	}

	cb := circuitbreaker.New("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Embedding client initialized", zap.String("model", model))

	return &Client{
		client:      openai.NewClient(apiKey),
		model:       model,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// WithCache attaches a lookaside cache. TTL <= 0 disables expiry.
func (c *Client) WithCache(cache Cache, ttl time.Duration) *Client {
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}

	if c.cache != nil {
		hash := utils.HashText(trimmed)
		if cached, ok, err := c.cache.GetEmbedding(ctx, hash); err == nil && ok {
			metrics.EmbeddingCacheHits.Inc()
			return cached, nil
		}
		metrics.EmbeddingCacheMisses.Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{trimmed},
					Model: openai.EmbeddingModel(c.model),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create embedding: %w", err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if c.cache != nil {
		hash := utils.HashText(trimmed)
		if err := c.cache.SetEmbedding(ctx, hash, embedding, c.cacheTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return embedding, nil
}

// EmbedBatch returns one embedding per input, preserving order. Empty or
// whitespace-only entries map to nil without consuming a model call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	var pending []string
	var pendingIdx []int
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		pending = append(pending, trimmed)
		pendingIdx = append(pendingIdx, i)
	}

	if len(pending) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2*c.timeout)
	defer cancel()

	batchSize := 100
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		var data []openai.Embedding

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.model),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to create batch embeddings: %w", err)
				}

				data = resp.Data
				return nil
			})
		})

		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for j, d := range data {
			embedding := make([]float32, len(d.Embedding))
			copy(embedding, d.Embedding)
			results[pendingIdx[start+j]] = embedding
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("requested", len(texts)), zap.Int("embedded", len(pending)))

	return results, nil
}
