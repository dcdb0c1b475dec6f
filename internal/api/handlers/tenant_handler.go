package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/saasarch/constitution-service/internal/storage/models"
	"github.com/saasarch/constitution-service/internal/storage/sqlite"
	"github.com/saasarch/constitution-service/pkg/logger"
)

type TenantHandler struct {
	db *sqlite.Client
}

func NewTenantHandler(db *sqlite.Client) *TenantHandler {
	return &TenantHandler{db: db}
}

func (h *TenantHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Name == "" || req.Slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name and slug are required"})
	}

	tenant := &models.Tenant{
		Name:      req.Name,
		Slug:      req.Slug,
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	if err := h.db.InsertTenant(tenant); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Tenant slug already exists"})
		}
		logger.Error("Failed to create tenant", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create tenant"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"id":   tenant.ID,
			"name": tenant.Name,
			"slug": tenant.Slug,
		},
	})
}

func (h *TenantHandler) Get(c *fiber.Ctx) error {
	id, err := parseTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tenant id"})
	}

	tenant, err := h.db.GetTenant(id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tenant not found"})
	}
	if err != nil {
		logger.Error("Failed to get tenant", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to get tenant"})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"id":       tenant.ID,
			"name":     tenant.Name,
			"slug":     tenant.Slug,
			"isActive": tenant.IsActive,
		},
	})
}

func (h *TenantHandler) Deactivate(c *fiber.Ctx) error {
	id, err := parseTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tenant id"})
	}

	err = h.db.DeactivateTenant(id)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tenant not found"})
	}
	if err != nil {
		logger.Error("Failed to deactivate tenant", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate tenant"})
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"deactivated": id}})
}

func (h *TenantHandler) AdoptPrinciple(c *fiber.Ctx) error {
	id, err := parseTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tenant id"})
	}

	principleID := c.Params("principleId")

	if _, err := h.db.GetTenant(id); errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tenant not found"})
	}
	if _, err := h.db.GetPrinciple(principleID); errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Principle not found"})
	}

	if err := h.db.AdoptPrinciple(id, principleID); err != nil {
		logger.Error("Failed to adopt principle", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to adopt principle"})
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"tenantId": id, "principleId": principleID}})
}

func (h *TenantHandler) RevokePrinciple(c *fiber.Ctx) error {
	id, err := parseTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tenant id"})
	}

	err = h.db.RevokePrinciple(id, c.Params("principleId"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Adoption not found"})
	}
	if err != nil {
		logger.Error("Failed to revoke principle", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to revoke principle"})
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"revoked": c.Params("principleId")}})
}

func parseTenantID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
