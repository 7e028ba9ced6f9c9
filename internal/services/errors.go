package services

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConnection marks transport failures: the provider could not be reached or
	// the connection broke before a response arrived.
	ErrConnection = errors.New("connection error")
	// ErrNotFound is returned when a local record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change would move an order backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyCart is returned when checkout is attempted with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned when a cart line is added with a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ProviderError is a non-success HTTP response from the payment provider.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("paypal %s failed: status %d, body: %s", e.Op, e.StatusCode, e.Body)
}

// Message is the human readable text shown to API clients for this failure.
func (e *ProviderError) Message() string {
	return StatusMessage(e.StatusCode)
}

// StatusMessage maps an HTTP status to the message reported to clients.
func StatusMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "Invalid payment request"
	case status == http.StatusUnauthorized:
		return "Not authorized"
	case status == http.StatusForbidden:
		return "Operation not permitted"
	case status == http.StatusNotFound:
		return "Payment order not found"
	case status == http.StatusUnprocessableEntity:
		return "Payment could not be processed"
	case status == http.StatusTooManyRequests:
		return "Too many requests, try again later"
	case status >= 500:
		return "Payment provider unavailable"
	default:
		return "Network error"
	}
}

// CaptureStatusError is returned when the provider answered a capture with a
// status other than COMPLETED.
type CaptureStatusError struct {
	ProviderOrderID string
	Status          string
}

func (e *CaptureStatusError) Error() string {
	return fmt.Sprintf("payment status: %s", e.Status)
}

// UnreconciledOrderError reports a provider order that exists remotely but could
// not be recorded locally.
type UnreconciledOrderError struct {
	ProviderOrderID string
	Err             error
}

func (e *UnreconciledOrderError) Error() string {
	return fmt.Sprintf("provider order %s created but not stored locally: %v", e.ProviderOrderID, e.Err)
}

func (e *UnreconciledOrderError) Unwrap() error {
	return e.Err
}
