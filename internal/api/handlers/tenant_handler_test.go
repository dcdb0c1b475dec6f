package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
)

func newTenantApp(t *testing.T) (*fiber.App, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	h := NewTenantHandler(db)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/tenants", h.Create)
	api.Get("/tenants/:id", h.Get)
	api.Delete("/tenants/:id", h.Deactivate)
	api.Post("/tenants/:id/principles/:principleId", h.AdoptPrinciple)
	api.Delete("/tenants/:id/principles/:principleId", h.RevokePrinciple)

	return app, db
}

func TestTenantCreateAndGet(t *testing.T) {
	app, _ := newTenantApp(t)

	resp := postJSON(t, app, "/api/v1/tenants", fiber.Map{"name": "Acme", "slug": "acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeBody(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "acme", created["slug"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/1", nil)
	getResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	data := decodeBody(t, getResp)["data"].(map[string]interface{})
	assert.Equal(t, "Acme", data["name"])
	assert.Equal(t, true, data["isActive"])
}

func TestTenantCreate_DuplicateSlugIs409(t *testing.T) {
	app, _ := newTenantApp(t)

	resp := postJSON(t, app, "/api/v1/tenants", fiber.Map{"name": "Acme", "slug": "acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/tenants", fiber.Map{"name": "Other", "slug": "acme"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTenantCreate_MissingFieldsIs400(t *testing.T) {
	app, _ := newTenantApp(t)

	resp := postJSON(t, app, "/api/v1/tenants", fiber.Map{"name": " ", "slug": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTenantAdoptAndRevoke(t *testing.T) {
	app, db := newTenantApp(t)

	now := time.Now()
	require.NoError(t, db.InsertPrinciple(&models.Principle{
		ID: "p-1", Text: "A perfectly valid principle text", Category: "general",
		Embedding: []float32{1}, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	resp := postJSON(t, app, "/api/v1/tenants", fiber.Map{"name": "Acme", "slug": "acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/tenants/1/principles/p-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pool, err := db.ListActivePrinciplesForTenant(1)
	require.NoError(t, err)
	assert.Len(t, pool, 1)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/1/principles/p-1", nil)
	delResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	pool, err = db.ListActivePrinciplesForTenant(1)
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func TestTenantAdopt_UnknownPrincipleIs404(t *testing.T) {
	app, _ := newTenantApp(t)

	resp := postJSON(t, app, "/api/v1/tenants", fiber.Map{"name": "Acme", "slug": "acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/tenants/1/principles/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTenantGet_InvalidIDIs400(t *testing.T) {
	app, _ := newTenantApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/abc", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
