package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/services"
)

// ErrorHandler renders every handler error as {"success": false, "message": ...}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := classify(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(body)
	}
}

func classify(err error) (int, fiber.Map) {
	var (
		fiberErr     *fiber.Error
		providerErr  *services.ProviderError
		captureErr   *services.CaptureStatusError
		unreconciled *services.UnreconciledOrderError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, failure(fiberErr.Message)
	case errors.As(err, &unreconciled):
		body := failure("payment was created but could not be recorded")
		body["provider_order_id"] = unreconciled.ProviderOrderID
		return fiber.StatusInternalServerError, body
	case errors.As(err, &captureErr):
		body := failure(captureErr.Error())
		body["provider_status"] = captureErr.Status
		return fiber.StatusUnprocessableEntity, body
	case errors.As(err, &providerErr):
		return providerStatus(providerErr.StatusCode), failure(providerErr.Message())
	case errors.Is(err, services.ErrConnection):
		return fiber.StatusServiceUnavailable, failure(services.StatusMessage(0))
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, failure("not found")
	case errors.Is(err, services.ErrInvalidTransition):
		return fiber.StatusConflict, failure(err.Error())
	case errors.Is(err, services.ErrEmptyCart), errors.Is(err, services.ErrInvalidQuantity):
		return fiber.StatusBadRequest, failure(err.Error())
	}
	return fiber.StatusInternalServerError, failure("internal server error")
}

// Provider rejections of the request itself keep their status; everything else is
// reported as a gateway failure.
func providerStatus(code int) int {
	switch code {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusTooManyRequests:
		return code
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusBadGateway
}

func failure(message string) fiber.Map {
	return fiber.Map{"success": false, "message": message}
}
