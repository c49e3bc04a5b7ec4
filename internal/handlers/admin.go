package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/translator-checkout/internal/config"
	"github.com/example/translator-checkout/internal/middleware"
	"github.com/example/translator-checkout/internal/models"
	"github.com/example/translator-checkout/internal/utils"
)

// AdminHandler exposes the payment ledger to the shop operator.
type AdminHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB, cfg *config.Config) *AdminHandler {
	return &AdminHandler{db: db, cfg: cfg}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the configured admin account and returns a JWT.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if h.cfg.AdminEmail == "" || h.cfg.AdminPasswordHash == "" {
		return fiber.NewError(fiber.StatusForbidden, "admin access is not configured")
	}

	if !strings.EqualFold(req.Email, h.cfg.AdminEmail) ||
		!utils.CheckPassword(h.cfg.AdminPasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, h.cfg.AdminEmail, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}

// Me returns the authenticated admin identity, letting the dashboard verify a
// stored token without touching the ledger.
func (h *AdminHandler) Me(c *fiber.Ctx) error {
	email, ok := middleware.GetCurrentAdmin(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"email":   email,
	})
}

// ListPayments returns payment records, optionally filtered by status or
// entry id.
func (h *AdminHandler) ListPayments(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.PaymentRecord{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if entryID := strings.TrimSpace(c.Query("entry_id")); entryID != "" {
		parsed, err := strconv.ParseInt(entryID, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid entry_id")
		}
		query = query.Where("entry_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var records []models.PaymentRecord
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&records).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetPayment returns the payment record for a single entry.
func (h *AdminHandler) GetPayment(c *fiber.Ctx) error {
	entryID, err := strconv.ParseInt(c.Params("entryID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid entry id")
	}

	var record models.PaymentRecord
	if err := h.db.Where("entry_id = ?", entryID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "payment not found")
		}
		return err
	}

	return c.JSON(record)
}
