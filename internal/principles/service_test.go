package principles

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasarch/constitution-service/internal/storage/sqlite"
)

type fakeEmbedder struct {
	calls  int
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return []float32{1, 0}, nil
}

type fakeWriter struct {
	inserts []string
	deletes []string
	err     error
}

func (f *fakeWriter) Insert(ctx context.Context, principleID, category string, embedding []float32, isActive bool) error {
	f.inserts = append(f.inserts, principleID)
	return f.err
}

func (f *fakeWriter) Delete(ctx context.Context, principleID string) error {
	f.deletes = append(f.deletes, principleID)
	return f.err
}

func newTestService(t *testing.T, embedder *fakeEmbedder, writer *fakeWriter) (*Service, *sqlite.Client) {
	t.Helper()

	db := newTestDB(t)
	store := NewStore(db, nil)

	var w IndexWriter
	if writer != nil {
		w = writer
	}
	return NewService(db, store, embedder, w), db
}

func TestCreate_PersistsAndIndexes(t *testing.T) {
	embedder := &fakeEmbedder{}
	writer := &fakeWriter{}
	svc, db := newTestService(t, embedder, writer)

	p, err := svc.Create(context.Background(), "Customer records must be encrypted", "data-protection")
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.True(t, p.IsActive)
	assert.Equal(t, []float32{1, 0}, p.Embedding)
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, []string{p.ID}, writer.inserts)

	stored, err := db.GetPrinciple(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Text, stored.Text)
}

func TestCreate_ValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, &fakeEmbedder{}, nil)

	_, err := svc.Create(context.Background(), "too short", "general")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), strings.Repeat("a", 5001), "general")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), "A perfectly valid principle text", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreate_EmbedFailureAborts(t *testing.T) {
	svc, db := newTestService(t, &fakeEmbedder{err: errors.New("provider down")}, nil)

	_, err := svc.Create(context.Background(), "A perfectly valid principle text", "general")
	require.Error(t, err)

	active, err := db.ListActivePrinciples()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCreate_IndexFailureIsNotFatal(t *testing.T) {
	writer := &fakeWriter{err: errors.New("index offline")}
	svc, db := newTestService(t, &fakeEmbedder{}, writer)

	p, err := svc.Create(context.Background(), "A perfectly valid principle text", "general")
	require.NoError(t, err)

	// SQLite is the system of record; the index catches up later.
	_, err = db.GetPrinciple(p.ID)
	assert.NoError(t, err)
}

func TestUpdate_ReembedsOnlyWhenTextChanges(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc, _ := newTestService(t, embedder, nil)

	p, err := svc.Create(context.Background(), "Customer records must be encrypted", "data-protection")
	require.NoError(t, err)
	require.Equal(t, 1, embedder.calls)

	_, err = svc.Update(context.Background(), p.ID, p.Text, "security")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.calls)

	updated, err := svc.Update(context.Background(), p.ID, "Customer records must always be encrypted", "")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.calls)
	assert.Equal(t, "security", updated.Category)
}

func TestUpdate_MissingPrinciple(t *testing.T) {
	svc, _ := newTestService(t, &fakeEmbedder{}, nil)

	_, err := svc.Update(context.Background(), "missing", "A perfectly valid principle text", "general")
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestDeactivate_RemovesFromIndexAndRetrieval(t *testing.T) {
	writer := &fakeWriter{}
	svc, _ := newTestService(t, &fakeEmbedder{}, writer)

	p, err := svc.Create(context.Background(), "A perfectly valid principle text", "general")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), p.ID))
	assert.Equal(t, []string{p.ID}, writer.deletes)

	active, err := svc.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSearch_EmbedsQueryAndFilters(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	svc, _ := newTestService(t, embedder, nil)

	_, err := svc.Create(context.Background(), "Closely aligned principle text", "general")
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), "aligned query", 10, 0.7)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	svc, _ := newTestService(t, &fakeEmbedder{}, nil)

	_, err := svc.Search(context.Background(), "  ", 10, 0.7)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
