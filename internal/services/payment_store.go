package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farmacia/internal/models"
)

// OrderStore is the durable table of payment orders.
type OrderStore interface {
	Insert(ctx context.Context, order *models.PaymentOrder) error
	Update(ctx context.Context, order *models.PaymentOrder) error
	GetByID(ctx context.Context, id uint) (*models.PaymentOrder, error)
	GetByLocalID(ctx context.Context, localID string) (*models.PaymentOrder, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.PaymentOrder, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentOrder, error)
	ListUnsynced(ctx context.Context) ([]models.PaymentOrder, error)
	ListByStatusBefore(ctx context.Context, status models.PaymentStatus, before time.Time) ([]models.PaymentOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]models.PaymentOrder, int64, error)
	MarkSynced(ctx context.Context, id uint) error
	ClearPending(ctx context.Context, userID uuid.UUID) (int64, error)
}

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Status models.PaymentStatus
	UserID *uuid.UUID
	Limit  int
	Offset int
}

// PaymentStore implements OrderStore on gorm.
type PaymentStore struct {
	db *gorm.DB
}

// NewPaymentStore constructs PaymentStore.
func NewPaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) Insert(ctx context.Context, order *models.PaymentOrder) error {
	return s.db.WithContext(ctx).Create(order).Error
}

// Update writes every column of order; gorm refreshes updated_at.
func (s *PaymentStore) Update(ctx context.Context, order *models.PaymentOrder) error {
	return s.db.WithContext(ctx).Save(order).Error
}

func (s *PaymentStore) GetByID(ctx context.Context, id uint) (*models.PaymentOrder, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *PaymentStore) GetByLocalID(ctx context.Context, localID string) (*models.PaymentOrder, error) {
	return s.first(ctx, "local_id = ?", localID)
}

func (s *PaymentStore) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.PaymentOrder, error) {
	return s.first(ctx, "provider_order_id = ?", providerOrderID)
}

// ListByUser returns the user's orders, newest first.
func (s *PaymentStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Find(&orders).Error
	return orders, err
}

func (s *PaymentStore) ListUnsynced(ctx context.Context) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	err := s.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("id asc").
		Find(&orders).Error
	return orders, err
}

// ListByStatusBefore returns orders in status whose last update is older than before.
func (s *PaymentStore) ListByStatusBefore(ctx context.Context, status models.PaymentStatus, before time.Time) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("id asc").
		Find(&orders).Error
	return orders, err
}

func (s *PaymentStore) List(ctx context.Context, filter OrderFilter) ([]models.PaymentOrder, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.PaymentOrder{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var orders []models.PaymentOrder
	if err := query.Order("created_at desc").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *PaymentStore) MarkSynced(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"synced":     true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearPending deletes the user's PENDING orders and reports how many were removed.
func (s *PaymentStore) ClearPending(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.PaymentStatusPending).
		Delete(&models.PaymentOrder{})
	return res.RowsAffected, res.Error
}

func (s *PaymentStore) first(ctx context.Context, query string, args ...any) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := s.db.WithContext(ctx).Where(query, args...).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}
