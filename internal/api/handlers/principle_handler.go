package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/embedding"
	"github.com/saasarch/constitution-service/internal/principles"
	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
	"github.com/saasarch/constitution-service/pkg/logger"
)

type PrincipleHandler struct {
	service *principles.Service
}

func NewPrincipleHandler(service *principles.Service) *PrincipleHandler {
	return &PrincipleHandler{service: service}
}

type principleResponse struct {
	ID        string `json:"id"`
	Principle string `json:"principle"`
	Category  string `json:"category"`
	IsActive  bool   `json:"isActive"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func toPrincipleResponse(p *models.Principle) principleResponse {
	return principleResponse{
		ID:        p.ID,
		Principle: p.Text,
		Category:  p.Category,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt.Unix(),
		UpdatedAt: p.UpdatedAt.Unix(),
	}
}

func (h *PrincipleHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Principle string `json:"principle"`
		Category  string `json:"category"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	principle, err := h.service.Create(c.Context(), req.Principle, req.Category)
	if err != nil {
		return principleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": toPrincipleResponse(principle)})
}

func (h *PrincipleHandler) List(c *fiber.Ctx) error {
	list, err := h.service.ListActive()
	if err != nil {
		logger.Error("Failed to list principles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list principles"})
	}

	out := make([]principleResponse, len(list))
	for i := range list {
		out[i] = toPrincipleResponse(&list[i])
	}

	return c.JSON(fiber.Map{"data": out})
}

func (h *PrincipleHandler) Update(c *fiber.Ctx) error {
	var req struct {
		Principle string `json:"principle"`
		Category  string `json:"category"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	principle, err := h.service.Update(c.Context(), c.Params("id"), req.Principle, req.Category)
	if err != nil {
		return principleError(c, err)
	}

	return c.JSON(fiber.Map{"data": toPrincipleResponse(principle)})
}

func (h *PrincipleHandler) Deactivate(c *fiber.Ctx) error {
	if err := h.service.Deactivate(c.Context(), c.Params("id")); err != nil {
		return principleError(c, err)
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"deactivated": c.Params("id")}})
}

func (h *PrincipleHandler) Search(c *fiber.Ctx) error {
	var req struct {
		Query     string  `json:"query"`
		Limit     int     `json:"limit"`
		Threshold float64 `json:"threshold"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Threshold == 0 {
		req.Threshold = 0.7
	}

	matches, err := h.service.Search(c.Context(), req.Query, req.Limit, req.Threshold)
	if err != nil {
		return principleError(c, err)
	}

	out := make([]fiber.Map, len(matches))
	for i, m := range matches {
		out[i] = fiber.Map{
			"id":         m.Principle.ID,
			"principle":  m.Principle.Text,
			"category":   m.Principle.Category,
			"similarity": m.Similarity,
		}
	}

	return c.JSON(fiber.Map{"data": out})
}

func principleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, principles.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, sqlite.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Principle not found"})
	case errors.Is(err, embedding.ErrEmptyText):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Text is required"})
	case errors.Is(err, embedding.ErrUnavailable):
		logger.Error("Embedding provider unavailable", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Embedding provider unavailable"})
	case errors.Is(err, principles.ErrStoreUnavailable):
		logger.Error("Principle store unavailable", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Principle store unavailable"})
	default:
		logger.Error("Principle operation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Principle operation failed"})
	}
}
