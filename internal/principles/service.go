package principles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
	"github.com/saasarch/constitution-service/pkg/logger"
)

var ErrInvalidInput = errors.New("invalid principle input")

const (
	minPrincipleLength = 10
	maxPrincipleLength = 5000
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexWriter keeps the vector index in sync with the system of record.
type IndexWriter interface {
	Insert(ctx context.Context, principleID, category string, embedding []float32, isActive bool) error
	Delete(ctx context.Context, principleID string) error
}

// Service owns the principle lifecycle: embeddings are computed at creation
// and recomputed whenever the text changes; principles are never hard-deleted.
type Service struct {
	db       *sqlite.Client
	store    *Store
	embedder Embedder
	writer   IndexWriter
}

func NewService(db *sqlite.Client, store *Store, embedder Embedder, writer IndexWriter) *Service {
	return &Service{
		db:       db,
		store:    store,
		embedder: embedder,
		writer:   writer,
	}
}

func (s *Service) Create(ctx context.Context, text, category string) (*models.Principle, error) {
	text = strings.TrimSpace(text)
	category = strings.TrimSpace(category)

	if err := validateText(text); err != nil {
		return nil, err
	}
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed principle: %w", err)
	}

	now := time.Now()
	principle := &models.Principle{
		ID:        uuid.New().String(),
		Text:      text,
		Category:  category,
		Embedding: vector,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.InsertPrinciple(principle); err != nil {
		return nil, err
	}

	s.syncIndex(ctx, principle)

	logger.Info("Principle created",
		zap.String("principle_id", principle.ID),
		zap.String("category", category),
	)

	return principle, nil
}

func (s *Service) Update(ctx context.Context, id, text, category string) (*models.Principle, error) {
	text = strings.TrimSpace(text)
	category = strings.TrimSpace(category)

	if err := validateText(text); err != nil {
		return nil, err
	}

	existing, err := s.db.GetPrinciple(id)
	if err != nil {
		return nil, err
	}

	if category == "" {
		category = existing.Category
	}

	vector := existing.Embedding
	if text != existing.Text {
		vector, err = s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to re-embed principle: %w", err)
		}
	}

	updated := &models.Principle{
		ID:        id,
		Text:      text,
		Category:  category,
		Embedding: vector,
		IsActive:  existing.IsActive,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: time.Now(),
	}

	if err := s.db.UpdatePrinciple(updated); err != nil {
		return nil, err
	}

	if s.writer != nil {
		if err := s.writer.Delete(ctx, id); err != nil {
			logger.Warn("Failed to remove stale index entry", zap.String("principle_id", id), zap.Error(err))
		}
	}
	s.syncIndex(ctx, updated)

	return updated, nil
}

// Deactivate soft-deletes: the principle drops out of retrieval but existing
// evaluation logs keep referencing it.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.db.DeactivatePrinciple(id); err != nil {
		return err
	}

	if s.writer != nil {
		if err := s.writer.Delete(ctx, id); err != nil {
			logger.Warn("Failed to remove index entry", zap.String("principle_id", id), zap.Error(err))
		}
	}

	return nil
}

func (s *Service) Get(id string) (*models.Principle, error) {
	return s.db.GetPrinciple(id)
}

func (s *Service) ListActive() ([]models.Principle, error) {
	return s.db.ListActivePrinciples()
}

// Search embeds the query and returns active principles with similarity
// greater than the threshold, most similar first.
func (s *Service) Search(ctx context.Context, query string, limit int, threshold float64) ([]PrincipleWithSimilarity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search query: %w", err)
	}

	return s.store.FindCandidates(ctx, vector, nil, threshold, limit)
}

func (s *Service) syncIndex(ctx context.Context, p *models.Principle) {
	if s.writer == nil {
		return
	}

	if err := s.writer.Insert(ctx, p.ID, p.Category, p.Embedding, p.IsActive); err != nil {
		// The record is durable in SQLite; retrieval falls back to the
		// in-process scan until the index catches up.
		logger.Warn("Failed to index principle embedding", zap.String("principle_id", p.ID), zap.Error(err))
	}
}

func validateText(text string) error {
	if len(text) < minPrincipleLength {
		return fmt.Errorf("%w: principle text must be at least %d characters", ErrInvalidInput, minPrincipleLength)
	}
	if len(text) > maxPrincipleLength {
		return fmt.Errorf("%w: principle text must be at most %d characters", ErrInvalidInput, maxPrincipleLength)
	}
	return nil
}
