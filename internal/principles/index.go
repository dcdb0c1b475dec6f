package principles

import (
	"context"

	"github.com/saasarch/constitution-service/internal/vector/milvus"
)

type milvusIndex struct {
	client *milvus.Client
}

// NewMilvusIndex adapts the Milvus client to the store's index interfaces.
func NewMilvusIndex(client *milvus.Client) interface {
	VectorIndex
	IndexWriter
} {
	return &milvusIndex{client: client}
}

func (m *milvusIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]IndexMatch, error) {
	matches, err := m.client.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, err
	}

	results := make([]IndexMatch, len(matches))
	for i, match := range matches {
		results[i] = IndexMatch{
			PrincipleID: match.PrincipleID,
			Similarity:  match.Similarity,
		}
	}

	return results, nil
}

func (m *milvusIndex) Insert(ctx context.Context, principleID, category string, embedding []float32, isActive bool) error {
	return m.client.Insert(ctx, principleID, category, embedding, isActive)
}

func (m *milvusIndex) Delete(ctx context.Context, principleID string) error {
	return m.client.Delete(ctx, principleID)
}
