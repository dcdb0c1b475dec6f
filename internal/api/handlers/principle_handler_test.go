package handlers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasarch/constitution-service/internal/principles"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
)

func newPrincipleApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	store := principles.NewStore(db, nil)
	service := principles.NewService(db, store, &stubEmbedder{}, nil)
	h := NewPrincipleHandler(service)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/principles", h.Create)
	api.Get("/principles", h.List)
	api.Put("/principles/:id", h.Update)
	api.Delete("/principles/:id", h.Deactivate)
	api.Post("/principles/search", h.Search)

	return app
}

func TestPrincipleCreateAndList(t *testing.T) {
	app := newPrincipleApp(t)

	resp := postJSON(t, app, "/api/v1/principles", fiber.Map{
		"principle": "Customer records must be encrypted",
		"category":  "data-protection",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeBody(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "Customer records must be encrypted", created["principle"])
	assert.Equal(t, true, created["isActive"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/principles", nil)
	listResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	list := decodeBody(t, listResp)["data"].([]interface{})
	assert.Len(t, list, 1)
}

func TestPrincipleCreate_ShortTextIs400(t *testing.T) {
	app := newPrincipleApp(t)

	resp := postJSON(t, app, "/api/v1/principles", fiber.Map{
		"principle": "too short",
		"category":  "general",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrincipleUpdate_MissingIs404(t *testing.T) {
	app := newPrincipleApp(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/principles/missing",
		strings.NewReader(`{"principle": "A perfectly valid principle text"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrincipleSearch(t *testing.T) {
	app := newPrincipleApp(t)

	resp := postJSON(t, app, "/api/v1/principles", fiber.Map{
		"principle": "Customer records must be encrypted",
		"category":  "data-protection",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	searchResp := postJSON(t, app, "/api/v1/principles/search", fiber.Map{
		"query": "encryption of records",
	})
	require.Equal(t, http.StatusOK, searchResp.StatusCode)

	matches := decodeBody(t, searchResp)["data"].([]interface{})
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].(map[string]interface{})["similarity"].(float64), 1e-9)
}

func TestPrincipleSearch_EmptyQueryIs400(t *testing.T) {
	app := newPrincipleApp(t)

	resp := postJSON(t, app, "/api/v1/principles/search", fiber.Map{"query": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
