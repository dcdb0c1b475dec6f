package principles

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/embedding"
	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
	"github.com/saasarch/constitution-service/pkg/logger"
)

// ErrStoreUnavailable wraps retrieval failures from the underlying stores.
var ErrStoreUnavailable = errors.New("principle store unavailable")

type PrincipleWithSimilarity struct {
	Principle  models.Principle
	Similarity float64
}

// VectorIndex answers nearest-neighbour queries over the global active pool.
// Optional: without it the store scans SQLite and scores in process.
type VectorIndex interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]IndexMatch, error)
}

type IndexMatch struct {
	PrincipleID string
	Similarity  float64
}

// Store is the single retrieval dependency of the evaluator: given a query
// vector it returns active principles above a similarity floor.
type Store struct {
	db    *sqlite.Client
	index VectorIndex
}

func NewStore(db *sqlite.Client, index VectorIndex) *Store {
	return &Store{db: db, index: index}
}

// FindCandidates returns active principles with similarity strictly greater
// than minSimilarity, ordered descending, capped at limit. A tenant id
// restricts the pool to active adoptions of an active tenant; nil means the
// global pool.
func (s *Store) FindCandidates(ctx context.Context, queryVector []float32, tenantID *int64, minSimilarity float64, limit int) ([]PrincipleWithSimilarity, error) {
	if limit <= 0 {
		limit = 20
	}

	if tenantID == nil && s.index != nil {
		return s.findViaIndex(ctx, queryVector, minSimilarity, limit)
	}

	// Tenant pools are small; score them in process. Also the fallback when
	// no vector index is configured.
	var pool []models.Principle
	var err error
	if tenantID != nil {
		pool, err = s.db.ListActivePrinciplesForTenant(*tenantID)
	} else {
		pool, err = s.db.ListActivePrinciples()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	candidates := make([]embedding.Candidate[models.Principle], 0, len(pool))
	for _, p := range pool {
		if len(p.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, embedding.Candidate[models.Principle]{
			Vector:  p.Embedding,
			Payload: p,
		})
	}

	matches, err := embedding.TopK(queryVector, candidates, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	results := make([]PrincipleWithSimilarity, 0, len(matches))
	for _, m := range matches {
		if m.Similarity <= minSimilarity {
			continue
		}
		results = append(results, PrincipleWithSimilarity{
			Principle:  m.Payload,
			Similarity: m.Similarity,
		})
	}

	return results, nil
}

func (s *Store) findViaIndex(ctx context.Context, queryVector []float32, minSimilarity float64, limit int) ([]PrincipleWithSimilarity, error) {
	matches, err := s.index.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	results := make([]PrincipleWithSimilarity, 0, len(matches))
	for _, m := range matches {
		if m.Similarity <= minSimilarity {
			continue
		}

		p, err := s.db.GetPrinciple(m.PrincipleID)
		if err == sqlite.ErrNotFound {
			logger.Warn("Indexed principle missing from store", zap.String("principle_id", m.PrincipleID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !p.IsActive {
			continue
		}

		results = append(results, PrincipleWithSimilarity{
			Principle:  *p,
			Similarity: m.Similarity,
		})
	}

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}
