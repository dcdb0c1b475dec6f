package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasarch/constitution-service/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.InitSchema())
	return c
}

func insertLog(t *testing.T, c *Client, id string, score float64, compliance string, tenantID *int64) {
	t.Helper()

	err := c.InsertEvaluationLog(&models.EvaluationLog{
		ID:                  id,
		TenantID:            tenantID,
		Action:              "test action",
		ResultJSON:          "{}",
		OverallScore:        score,
		Compliance:          compliance,
		PrinciplesEvaluated: 1,
		DurationMS:          5,
		CreatedAt:           time.Now(),
	})
	require.NoError(t, err)
}

func TestPrincipleRoundTrip(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	original := &models.Principle{
		ID:        "p-1",
		Text:      "Customer records must be encrypted",
		Category:  "data-protection",
		Embedding: []float32{0.1, -0.2, 0.3},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, c.InsertPrinciple(original))

	got, err := c.GetPrinciple("p-1")
	require.NoError(t, err)

	assert.Equal(t, original.Text, got.Text)
	assert.Equal(t, original.Category, got.Category)
	assert.Equal(t, original.Embedding, got.Embedding)
	assert.True(t, got.IsActive)
}

func TestGetPrinciple_NotFound(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetPrinciple("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivatePrinciple_HidesFromActiveList(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	require.NoError(t, c.InsertPrinciple(&models.Principle{
		ID: "p-1", Text: "A principle", Category: "general",
		Embedding: []float32{1}, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, c.DeactivatePrinciple("p-1"))

	active, err := c.ListActivePrinciples()
	require.NoError(t, err)
	assert.Empty(t, active)

	// The record itself survives deactivation.
	got, err := c.GetPrinciple("p-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestAdoptPrinciple_ReactivatesRevoked(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	require.NoError(t, c.InsertPrinciple(&models.Principle{
		ID: "p-1", Text: "A principle", Category: "general",
		Embedding: []float32{1}, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	tenant := &models.Tenant{Name: "Acme", Slug: "acme", CreatedAt: now}
	require.NoError(t, c.InsertTenant(tenant))

	require.NoError(t, c.AdoptPrinciple(tenant.ID, "p-1"))
	require.NoError(t, c.RevokePrinciple(tenant.ID, "p-1"))
	require.NoError(t, c.AdoptPrinciple(tenant.ID, "p-1"))

	pool, err := c.ListActivePrinciplesForTenant(tenant.ID)
	require.NoError(t, err)
	assert.Len(t, pool, 1)
}

func TestListEvaluationLogs_FiltersByScoreAndTenant(t *testing.T) {
	c := newTestClient(t)

	tenant := &models.Tenant{Name: "Acme", Slug: "acme", CreatedAt: time.Now()}
	require.NoError(t, c.InsertTenant(tenant))

	insertLog(t, c, "log-1", 0.9, "PASS", nil)
	insertLog(t, c, "log-2", 0.6, "WARNING", &tenant.ID)
	insertLog(t, c, "log-3", 0.3, "FAIL", &tenant.ID)

	minScore := 0.5
	logs, err := c.ListEvaluationLogs(models.LogFilter{TenantID: &tenant.ID, MinScore: &minScore})
	require.NoError(t, err)

	require.Len(t, logs, 1)
	assert.Equal(t, "log-2", logs[0].ID)
	require.NotNil(t, logs[0].TenantID)
	assert.Equal(t, tenant.ID, *logs[0].TenantID)
}

func TestLogStats(t *testing.T) {
	c := newTestClient(t)

	insertLog(t, c, "log-1", 0.9, "PASS", nil)
	insertLog(t, c, "log-2", 0.5, "WARNING", nil)
	insertLog(t, c, "log-3", 0.4, "FAIL", nil)

	stats, err := c.LogStats(models.LogFilter{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.InDelta(t, 0.6, stats.AverageScore, 1e-9)
	assert.Equal(t, 0.4, stats.MinScore)
	assert.Equal(t, 0.9, stats.MaxScore)
}

func TestScoreDistribution_Buckets(t *testing.T) {
	c := newTestClient(t)

	insertLog(t, c, "log-1", 0.95, "PASS", nil)
	insertLog(t, c, "log-2", 0.9, "PASS", nil)
	insertLog(t, c, "log-3", 0.7, "PASS", nil)
	insertLog(t, c, "log-4", 0.5, "WARNING", nil)
	insertLog(t, c, "log-5", 0.49, "FAIL", nil)

	dist, err := c.ScoreDistribution(nil, 30)
	require.NoError(t, err)

	assert.Equal(t, 2, dist.Excellent)
	assert.Equal(t, 1, dist.Good)
	assert.Equal(t, 1, dist.Fair)
	assert.Equal(t, 1, dist.Poor)
}

func TestDeleteEvaluationLog(t *testing.T) {
	c := newTestClient(t)

	insertLog(t, c, "log-1", 0.8, "PASS", nil)

	require.NoError(t, c.DeleteEvaluationLog("log-1"))
	_, err := c.GetEvaluationLog("log-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, c.DeleteEvaluationLog("log-1"), ErrNotFound)
}
