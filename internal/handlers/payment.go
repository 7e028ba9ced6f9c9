package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/middleware"
	"github.com/example/farmacia/internal/models"
	"github.com/example/farmacia/internal/services"
)

const streamKeepAlive = 25 * time.Second

// PaymentHandler exposes checkout and the caller's payment orders.
type PaymentHandler struct {
	payments *services.PaymentService
	cart     *services.CartService
	log      *zap.Logger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService, cart *services.CartService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, cart: cart, log: log.Named("payment_handler")}
}

// Checkout creates a PayPal order for the caller's cart.
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	summary, err := h.cart.Summary(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if len(summary.Items) == 0 {
		return services.ErrEmptyCart
	}

	result, err := h.payments.CreatePayPalOrder(c.UserContext(), userID, summary.Lines(), summary.Total)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": result})
}

type captureRequest struct {
	LocalOrderID string `json:"local_order_id"`
}

// Capture finalises an approved PayPal order and clears the cart on success.
func (h *PaymentHandler) Capture(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	providerOrderID := c.Params("orderID")
	if providerOrderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing order id")
	}

	var req captureRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	// Only provider orders recorded for the caller can be captured here.
	order, err := h.payments.GetOrderByProviderOrderID(c.UserContext(), providerOrderID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment order not found")
		}
		return err
	}
	if order.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "payment order not found")
	}
	if req.LocalOrderID == "" {
		req.LocalOrderID = order.LocalID
	}

	result, err := h.payments.CapturePayPalPayment(c.UserContext(), providerOrderID, req.LocalOrderID)
	if err != nil {
		return err
	}

	if err := h.cart.Clear(c.UserContext(), userID); err != nil {
		h.log.Warn("clear cart after capture", zap.String("user_id", userID.String()), zap.Error(err))
	}

	return c.JSON(fiber.Map{"success": true, "data": result})
}

type localOrderRequest struct {
	Items           []models.CartLine `json:"items"`
	Total           decimal.Decimal   `json:"total"`
	ProviderOrderID *string           `json:"provider_order_id"`
}

// CreateLocalOrder records a PENDING order without contacting PayPal.
func (h *PaymentHandler) CreateLocalOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req localOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Total.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "total must not be negative")
	}

	order, err := h.payments.CreateLocalOrder(c.UserContext(), userID, req.Items, req.Total, req.ProviderOrderID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders returns the caller's orders, newest first.
func (h *PaymentHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orders, err := h.payments.GetOrdersByUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

// GetOrder returns one of the caller's orders by numeric id or local id.
func (h *PaymentHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	order, err := h.lookup(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return fiber.NewError(fiber.StatusNotFound, "payment order not found")
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// ClearPending deletes the caller's PENDING orders.
func (h *PaymentHandler) ClearPending(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	removed, err := h.payments.ClearPendingOrders(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"removed": removed}})
}

// StreamOrders pushes the caller's order list as server-sent events: once on
// connect and again after every change.
func (h *PaymentHandler) StreamOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	// The stream outlives the handler, so it cannot use the request context.
	ctx, cancel := context.WithCancel(context.Background())
	updates, err := h.payments.WatchOrdersByUser(ctx, userID)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.log.With(zap.String("user_id", userID.String()))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case orders, ok := <-updates:
				if !ok {
					return
				}
				if err := writeOrdersEvent(w, orders); err != nil {
					log.Debug("order stream closed", zap.Error(err))
					return
				}
			case <-keepAlive.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					log.Debug("order stream closed", zap.Error(err))
					return
				}
			}
		}
	})
	return nil
}

func writeOrdersEvent(w *bufio.Writer, orders []services.OrderDetail) error {
	payload, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: orders\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func (h *PaymentHandler) lookup(ctx context.Context, raw string) (*services.OrderDetail, error) {
	if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return h.payments.GetOrderByID(ctx, uint(id))
	}
	if _, err := uuid.Parse(raw); err == nil {
		return h.payments.GetOrderByLocalID(ctx, raw)
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "invalid order id")
}
