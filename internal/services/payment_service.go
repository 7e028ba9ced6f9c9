package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/models"
)

// CaptureCompleted is the provider status that marks a successful capture.
const CaptureCompleted = "COMPLETED"

const providerOrderVoided = "VOIDED"

// PaymentProvider is the remote checkout-orders API.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, token string, order PayPalOrderRequest) (*PayPalOrder, error)
	CaptureOrder(ctx context.Context, token, providerOrderID string) (*PayPalCaptureResponse, error)
	GetOrderDetails(ctx context.Context, token, providerOrderID string) (*PayPalOrder, error)
}

// TokenSource hands out provider bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// PaymentNotifier is told about completed payments.
type PaymentNotifier interface {
	NotifyPaymentCompleted(n PaymentNotification) error
}

// SyncPublisher acknowledges completed orders downstream during a sync pass.
type SyncPublisher interface {
	PublishOrderSynced(ctx context.Context, order models.PaymentOrder) error
}

// CheckoutSettings are the order request values that do not depend on the cart.
type CheckoutSettings struct {
	Currency  string
	BrandName string
	ReturnURL string
	CancelURL string
}

// PaymentService coordinates the token cache, the provider client and the local
// order store.
type PaymentService struct {
	store     OrderStore
	provider  PaymentProvider
	tokens    TokenSource
	watcher   *OrderWatcher
	notifier  PaymentNotifier
	publisher SyncPublisher
	settings  CheckoutSettings
	log       *zap.Logger
	now       func() time.Time
}

// PaymentServiceOption customises optional collaborators.
type PaymentServiceOption func(*PaymentService)

// WithNotifier sends completed-payment notifications through n.
func WithNotifier(n PaymentNotifier) PaymentServiceOption {
	return func(s *PaymentService) { s.notifier = n }
}

// WithSyncPublisher acknowledges synced orders through p.
func WithSyncPublisher(p SyncPublisher) PaymentServiceOption {
	return func(s *PaymentService) { s.publisher = p }
}

// NewPaymentService wires the payment repository.
func NewPaymentService(store OrderStore, provider PaymentProvider, tokens TokenSource, settings CheckoutSettings, log *zap.Logger, opts ...PaymentServiceOption) *PaymentService {
	if settings.Currency == "" {
		settings.Currency = "USD"
	}
	if settings.BrandName == "" {
		settings.BrandName = "Farmacia Cruz"
	}
	s := &PaymentService{
		store:    store,
		provider: provider,
		tokens:   tokens,
		watcher:  NewOrderWatcher(),
		settings: settings,
		log:      log.Named("payments"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderDetail is a payment order with its cart snapshot decoded.
type OrderDetail struct {
	ID              uint                 `json:"id"`
	LocalID         string               `json:"local_id"`
	UserID          uuid.UUID            `json:"user_id"`
	Total           decimal.Decimal      `json:"total"`
	Items           []models.CartLine    `json:"items"`
	Status          models.PaymentStatus `json:"status"`
	PaymentMethod   string               `json:"payment_method"`
	ProviderOrderID *string              `json:"provider_order_id"`
	ProviderPayerID *string              `json:"provider_payer_id"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Synced          bool                 `json:"synced"`
	ErrorMessage    *string              `json:"error_message"`
}

func toDetail(o models.PaymentOrder) OrderDetail {
	return OrderDetail{
		ID:              o.ID,
		LocalID:         o.LocalID,
		UserID:          o.UserID,
		Total:           o.Total,
		Items:           o.Lines(),
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		ProviderOrderID: o.ProviderOrderID,
		ProviderPayerID: o.ProviderPayerID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Synced:          o.Synced,
		ErrorMessage:    o.ErrorMessage,
	}
}

func toDetails(orders []models.PaymentOrder) []OrderDetail {
	details := make([]OrderDetail, 0, len(orders))
	for _, o := range orders {
		details = append(details, toDetail(o))
	}
	return details
}

// CheckoutResult is returned once a provider order exists and is recorded locally.
type CheckoutResult struct {
	OrderID         uint         `json:"order_id"`
	LocalID         string       `json:"local_id"`
	ProviderOrderID string       `json:"provider_order_id"`
	ApprovalURL     string       `json:"approval_url"`
	Links           []PayPalLink `json:"links"`
}

// PaymentResult describes a successful capture.
type PaymentResult struct {
	OrderID string          `json:"order_id"`
	PayerID string          `json:"payer_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// FormatAmount renders total with exactly two decimals, rounding half away from zero.
func FormatAmount(total decimal.Decimal) string {
	return total.StringFixed(2)
}

// BuildOrderRequest assembles the provider create-order body for a cart.
func (s *PaymentService) BuildOrderRequest(items []models.CartLine, total decimal.Decimal) PayPalOrderRequest {
	return PayPalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PayPalPurchaseUnit{
			{
				ReferenceID: uuid.NewString(),
				Description: fmt.Sprintf("Purchase at %s - %d products", s.settings.BrandName, len(items)),
				Amount: PayPalAmount{
					CurrencyCode: s.settings.Currency,
					Value:        FormatAmount(total),
				},
			},
		},
		ApplicationContext: &PayPalApplicationContext{
			BrandName:          s.settings.BrandName,
			LandingPage:        "BILLING",
			ShippingPreference: "NO_SHIPPING",
			UserAction:         "PAY_NOW",
			ReturnURL:          s.settings.ReturnURL,
			CancelURL:          s.settings.CancelURL,
		},
	}
}

// CreatePayPalOrder creates a provider order for the cart and records it locally as
// PROCESSING. total is trusted as given. Nothing is written unless the provider call
// succeeds.
func (s *PaymentService) CreatePayPalOrder(ctx context.Context, userID uuid.UUID, items []models.CartLine, total decimal.Decimal) (*CheckoutResult, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain paypal token: %w", err)
	}

	created, err := s.provider.CreateOrder(ctx, token, s.BuildOrderRequest(items, total))
	if err != nil {
		s.dropTokenOnUnauthorized(err)
		return nil, fmt.Errorf("create paypal order: %w", err)
	}

	snapshot, err := models.NewCartSnapshot(items)
	if err != nil {
		return nil, s.unreconciled(created.ID, fmt.Errorf("encode cart snapshot: %w", err))
	}

	providerOrderID := created.ID
	order := &models.PaymentOrder{
		LocalID:         uuid.NewString(),
		UserID:          userID,
		Total:           total,
		Items:           snapshot,
		Status:          models.PaymentStatusProcessing,
		PaymentMethod:   models.PaymentMethodPayPal,
		ProviderOrderID: &providerOrderID,
	}
	if err := s.store.Insert(ctx, order); err != nil {
		return nil, s.unreconciled(created.ID, err)
	}
	s.watcher.Notify(userID)

	s.log.Info("paypal order created",
		zap.String("provider_order_id", created.ID),
		zap.String("local_id", order.LocalID),
		zap.String("user_id", userID.String()),
		zap.String("total", FormatAmount(total)),
	)

	return &CheckoutResult{
		OrderID:         order.ID,
		LocalID:         order.LocalID,
		ProviderOrderID: created.ID,
		ApprovalURL:     created.ApprovalURL(),
		Links:           created.Links,
	}, nil
}

// CapturePayPalPayment finalises an approved provider order and moves the matching
// local record to COMPLETED or FAILED. localOrderID is only used for correlation.
func (s *PaymentService) CapturePayPalPayment(ctx context.Context, providerOrderID, localOrderID string) (*PaymentResult, error) {
	log := s.log.With(zap.String("provider_order_id", providerOrderID), zap.String("local_id", localOrderID))

	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.settleLocal(ctx, providerOrderID, models.PaymentStatusFailed, nil, err.Error())
		return nil, fmt.Errorf("obtain paypal token: %w", err)
	}

	captured, err := s.provider.CaptureOrder(ctx, token, providerOrderID)
	if err != nil {
		s.dropTokenOnUnauthorized(err)
		s.settleLocal(ctx, providerOrderID, models.PaymentStatusFailed, nil, err.Error())
		log.Warn("paypal capture failed", zap.Error(err))
		return nil, fmt.Errorf("capture paypal order: %w", err)
	}

	if captured.Status != CaptureCompleted {
		statusErr := &CaptureStatusError{ProviderOrderID: providerOrderID, Status: captured.Status}
		s.settleLocal(ctx, providerOrderID, models.PaymentStatusFailed, nil, statusErr.Error())
		log.Warn("paypal capture not completed", zap.String("status", captured.Status))
		return nil, statusErr
	}

	payerID := captured.PayerID()
	amount, err := decimal.NewFromString(captured.CapturedAmount())
	if err != nil {
		amount = decimal.Zero
	}

	order := s.settleLocal(ctx, providerOrderID, models.PaymentStatusCompleted, &payerID, "")
	if order != nil {
		s.notifyCompleted(*order, payerID, amount)
	}

	log.Info("paypal payment captured", zap.String("payer_id", payerID), zap.String("amount", amount.String()))

	return &PaymentResult{
		OrderID: providerOrderID,
		PayerID: payerID,
		Amount:  amount,
	}, nil
}

// CreateLocalOrder records a PENDING order without contacting the provider.
func (s *PaymentService) CreateLocalOrder(ctx context.Context, userID uuid.UUID, items []models.CartLine, total decimal.Decimal, providerOrderID *string) (*OrderDetail, error) {
	snapshot, err := models.NewCartSnapshot(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart snapshot: %w", err)
	}

	order := &models.PaymentOrder{
		LocalID:         uuid.NewString(),
		UserID:          userID,
		Total:           total,
		Items:           snapshot,
		Status:          models.PaymentStatusPending,
		PaymentMethod:   models.PaymentMethodPayPal,
		ProviderOrderID: providerOrderID,
	}
	if err := s.store.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("save local order: %w", err)
	}

	saved, err := s.store.GetByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load saved order: %w", err)
	}
	s.watcher.Notify(userID)

	detail := toDetail(*saved)
	return &detail, nil
}

// GetOrdersByUser lists the user's orders, newest first.
func (s *PaymentService) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]OrderDetail, error) {
	orders, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return toDetails(orders), nil
}

// WatchOrdersByUser emits the user's order list now and again after every change,
// until ctx is done. The channel is closed when the watch ends.
func (s *PaymentService) WatchOrdersByUser(ctx context.Context, userID uuid.UUID) (<-chan []OrderDetail, error) {
	changes, cancel := s.watcher.Subscribe(userID)

	initial, err := s.GetOrdersByUser(ctx, userID)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []OrderDetail, 1)
	out <- initial

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				orders, err := s.GetOrdersByUser(ctx, userID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.log.Warn("refresh watched orders", zap.String("user_id", userID.String()), zap.Error(err))
					continue
				}
				select {
				case out <- orders:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// GetOrderByID looks an order up by its storage key.
func (s *PaymentService) GetOrderByID(ctx context.Context, id uint) (*OrderDetail, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := toDetail(*order)
	return &detail, nil
}

// GetOrderByLocalID looks an order up by its local identifier.
func (s *PaymentService) GetOrderByLocalID(ctx context.Context, localID string) (*OrderDetail, error) {
	order, err := s.store.GetByLocalID(ctx, localID)
	if err != nil {
		return nil, err
	}
	detail := toDetail(*order)
	return &detail, nil
}

// GetOrderByProviderOrderID looks an order up by the provider's order id.
func (s *PaymentService) GetOrderByProviderOrderID(ctx context.Context, providerOrderID string) (*OrderDetail, error) {
	order, err := s.store.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}
	detail := toDetail(*order)
	return &detail, nil
}

// ListOrders returns every order matching filter and the unpaginated count.
func (s *PaymentService) ListOrders(ctx context.Context, filter OrderFilter) ([]OrderDetail, int64, error) {
	orders, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return toDetails(orders), total, nil
}

// UpdateOrderStatus sets status and payer id on an order. Backward moves are
// rejected with ErrInvalidTransition. A nil payerID keeps the stored payer, and
// rewriting the status of a COMPLETED or FAILED order leaves it untouched.
func (s *PaymentService) UpdateOrderStatus(ctx context.Context, id uint, status models.PaymentStatus, payerID *string) (*OrderDetail, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}
	if order.Status.Terminal() {
		// Same-state rewrite of a settled order: nothing may change.
		if payerID != nil && order.ProviderPayerID != nil && *payerID != *order.ProviderPayerID {
			return nil, fmt.Errorf("%w: payer of %s order is fixed", ErrInvalidTransition, order.Status)
		}
		detail := toDetail(*order)
		return &detail, nil
	}

	order.Status = status
	if payerID != nil {
		order.ProviderPayerID = payerID
	}
	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	s.watcher.Notify(order.UserID)

	detail := toDetail(*order)
	return &detail, nil
}

// SyncReport summarises one sync pass.
type SyncReport struct {
	Scanned       int `json:"scanned"`
	Synced        int `json:"synced"`
	Skipped       int `json:"skipped"`
	PublishFailed int `json:"publish_failed"`
}

// SyncOrders marks every unsynced COMPLETED order as synced. Orders in any other
// status stay unsynced until they complete.
func (s *PaymentService) SyncOrders(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	unsynced, err := s.store.ListUnsynced(ctx)
	if err != nil {
		return report, fmt.Errorf("list unsynced orders: %w", err)
	}
	report.Scanned = len(unsynced)

	for _, order := range unsynced {
		if order.Status != models.PaymentStatusCompleted {
			report.Skipped++
			continue
		}

		if s.publisher != nil {
			if err := s.publisher.PublishOrderSynced(ctx, order); err != nil {
				report.PublishFailed++
				s.log.Warn("publish synced order", zap.String("local_id", order.LocalID), zap.Error(err))
				continue
			}
		}

		if err := s.store.MarkSynced(ctx, order.ID); err != nil {
			return report, fmt.Errorf("mark order %d synced: %w", order.ID, err)
		}
		report.Synced++
		s.watcher.Notify(order.UserID)
	}

	s.log.Info("order sync finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("synced", report.Synced),
		zap.Int("skipped", report.Skipped),
		zap.Int("publish_failed", report.PublishFailed),
	)
	return report, nil
}

// ClearPendingOrders deletes the user's PENDING orders.
func (s *PaymentService) ClearPendingOrders(ctx context.Context, userID uuid.UUID) (int64, error) {
	removed, err := s.store.ClearPending(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear pending orders: %w", err)
	}
	if removed > 0 {
		s.watcher.Notify(userID)
	}
	return removed, nil
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}

// ReconcileOrders asks the provider about PROCESSING orders idle for longer than
// olderThan. Provider COMPLETED orders become COMPLETED locally and VOIDED ones
// become FAILED; everything else is left alone.
func (s *PaymentService) ReconcileOrders(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	var report ReconcileReport

	stale, err := s.store.ListByStatusBefore(ctx, models.PaymentStatusProcessing, s.now().Add(-olderThan))
	if err != nil {
		return report, fmt.Errorf("list processing orders: %w", err)
	}
	if len(stale) == 0 {
		return report, nil
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return report, fmt.Errorf("obtain paypal token: %w", err)
	}

	for i := range stale {
		order := &stale[i]
		if order.ProviderOrderID == nil {
			report.Unchanged++
			continue
		}
		report.Checked++

		details, err := s.provider.GetOrderDetails(ctx, token, *order.ProviderOrderID)
		if err != nil {
			report.Errors++
			s.dropTokenOnUnauthorized(err)
			s.log.Warn("reconcile order details", zap.String("provider_order_id", *order.ProviderOrderID), zap.Error(err))
			continue
		}

		switch details.Status {
		case CaptureCompleted:
			order.Status = models.PaymentStatusCompleted
			if details.Payer != nil && details.Payer.PayerID != "" {
				payerID := details.Payer.PayerID
				order.ProviderPayerID = &payerID
			}
			order.ErrorMessage = nil
			report.Completed++
		case providerOrderVoided:
			msg := "provider order voided"
			order.Status = models.PaymentStatusFailed
			order.ErrorMessage = &msg
			report.Failed++
		default:
			report.Unchanged++
			continue
		}

		if err := s.store.Update(ctx, order); err != nil {
			return report, fmt.Errorf("update reconciled order %d: %w", order.ID, err)
		}
		s.watcher.Notify(order.UserID)
	}

	s.log.Info("order reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.Int("errors", report.Errors),
	)
	return report, nil
}

// Watcher exposes the change hub used by this service.
func (s *PaymentService) Watcher() *OrderWatcher {
	return s.watcher
}

// settleLocal moves the record matching providerOrderID to status. Failures are
// logged and never change the caller's outcome. Returns the updated record or nil.
func (s *PaymentService) settleLocal(ctx context.Context, providerOrderID string, status models.PaymentStatus, payerID *string, reason string) *models.PaymentOrder {
	log := s.log.With(zap.String("provider_order_id", providerOrderID), zap.String("status", string(status)))

	order, err := s.store.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		log.Warn("local order lookup failed", zap.Error(err))
		return nil
	}
	if !order.Status.CanTransitionTo(status) {
		log.Warn("skipping backward status change", zap.String("current", string(order.Status)))
		return nil
	}

	order.Status = status
	if payerID != nil {
		order.ProviderPayerID = payerID
	}
	if reason != "" {
		order.ErrorMessage = &reason
	} else {
		order.ErrorMessage = nil
	}

	if err := s.store.Update(ctx, order); err != nil {
		log.Error("local order update failed", zap.Error(err))
		return nil
	}
	s.watcher.Notify(order.UserID)
	return order
}

func (s *PaymentService) notifyCompleted(order models.PaymentOrder, payerID string, amount decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	n := PaymentNotification{
		LocalID:         order.LocalID,
		ProviderOrderID: derefString(order.ProviderOrderID),
		PayerID:         payerID,
		Amount:          amount,
		Currency:        s.settings.Currency,
		Items:           order.Lines(),
	}
	go func() {
		if err := s.notifier.NotifyPaymentCompleted(n); err != nil {
			s.log.Warn("payment notification failed", zap.String("local_id", n.LocalID), zap.Error(err))
		}
	}()
}

func (s *PaymentService) unreconciled(providerOrderID string, err error) error {
	s.log.Error("provider order created without local record",
		zap.String("provider_order_id", providerOrderID),
		zap.Error(err),
	)
	return &UnreconciledOrderError{ProviderOrderID: providerOrderID, Err: err}
}

func (s *PaymentService) dropTokenOnUnauthorized(err error) {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode == http.StatusUnauthorized {
		s.tokens.Invalidate()
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
