package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/farmacia/internal/middleware"
	"github.com/example/farmacia/internal/models"
	"github.com/example/farmacia/internal/services"
	"github.com/example/farmacia/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db             *gorm.DB
	payments       *services.PaymentService
	reconcileAfter time.Duration
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, payments *services.PaymentService, reconcileAfter time.Duration) *AdminHandler {
	return &AdminHandler{db: db, payments: payments, reconcileAfter: reconcileAfter}
}

// DashboardStats returns aggregate payment statistics.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.PaymentOrder{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	var totalOrders int64
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
		totalOrders += sc.Count
	}

	var completed []models.PaymentOrder
	if err := h.db.Select("total").
		Where("status = ?", models.PaymentStatusCompleted).
		Find(&completed).Error; err != nil {
		return err
	}
	revenue := decimal.Zero
	for _, o := range completed {
		revenue = revenue.Add(o.Total)
	}

	var unsynced int64
	if err := h.db.Model(&models.PaymentOrder{}).
		Where("status = ? AND synced = ?", models.PaymentStatusCompleted, false).
		Count(&unsynced).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":      totalUsers,
			"total_orders":     totalOrders,
			"orders_by_status": ordersByStatus,
			"total_revenue":    services.FormatAmount(revenue),
			"awaiting_sync":    unsynced,
		},
	})
}

// ListAllOrders returns every payment order with pagination and optional filters.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := services.OrderFilter{Limit: pg.Limit, Offset: pg.Offset}

	if status := strings.ToUpper(c.Query("status")); status != "" {
		filter.Status = models.PaymentStatus(status)
		if !filter.Status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
	}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid user_id")
		}
		filter.UserID = &id
	}

	orders, total, err := h.payments.ListOrders(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

type updateStatusRequest struct {
	Status  string  `json:"status"`
	PayerID *string `json:"payer_id"`
}

// UpdateOrderStatus moves an order forward through its lifecycle.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.payments.UpdateOrderStatus(c.UserContext(), uint(id), models.PaymentStatus(strings.ToUpper(req.Status)), req.PayerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// SyncOrders runs one sync pass.
func (h *AdminHandler) SyncOrders(c *fiber.Ctx) error {
	report, err := h.payments.SyncOrders(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": report})
}

// ReconcileOrders checks stale PROCESSING orders against PayPal. The idle threshold
// may be overridden with ?older_than=10m.
func (h *AdminHandler) ReconcileOrders(c *fiber.Ctx) error {
	olderThan := h.reconcileAfter
	if v := c.Query("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid older_than")
		}
		olderThan = d
	}

	report, err := h.payments.ReconcileOrders(c.UserContext(), olderThan)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": report})
}

// ListAllUsers returns registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.User{})

	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		q := "%" + search + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			q, q, q,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       users,
		"pagination": pg.Meta(total),
	})
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRole promotes or demotes a user.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Role != models.RoleClient && req.Role != models.RoleAdmin {
		return fiber.NewError(fiber.StatusBadRequest, "invalid role")
	}

	res := h.db.Model(&models.User{}).Where("id = ?", id).Update("role", req.Role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// DeleteUser removes a user and their cart. Payment orders are kept.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	if current, ok := middleware.GetCurrentUserID(c); ok && current == id {
		return fiber.NewError(fiber.StatusBadRequest, "cannot delete yourself")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
