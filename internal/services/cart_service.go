package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/farmacia/internal/models"
)

// CartService manages per-user cart lines.
type CartService struct {
	db *gorm.DB
}

// NewCartService constructs CartService.
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// CartSummary is a cart with its derived totals.
type CartSummary struct {
	Items      []models.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	Total      decimal.Decimal   `json:"total"`
}

// Lines converts the cart into order snapshot lines.
func (s CartSummary) Lines() []models.CartLine {
	lines := make([]models.CartLine, 0, len(s.Items))
	for _, item := range s.Items {
		lines = append(lines, item.Line())
	}
	return lines
}

// List returns the user's cart lines in insertion order.
func (s *CartService) List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at asc").
		Order("id asc").
		Find(&items).Error
	return items, err
}

// Summary returns the cart together with item count and total.
func (s *CartService) Summary(ctx context.Context, userID uuid.UUID) (*CartSummary, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	summary := &CartSummary{Items: items, Total: decimal.Zero}
	for _, item := range items {
		summary.TotalItems += item.Quantity
		summary.Total = summary.Total.Add(item.LineTotal())
	}
	return summary, nil
}

// Add puts quantity units of productID in the cart, incrementing an existing line.
func (s *CartService) Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var item models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
		switch {
		case err == nil:
			item.Quantity += quantity
			return tx.Model(&item).Update("quantity", item.Quantity).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{
				UserID:      userID,
				ProductID:   productID,
				Quantity:    quantity,
				Name:        product.Name,
				Category:    product.Category,
				Description: product.Description,
				UnitPrice:   product.Price,
				ImageURL:    product.ImageURL,
				AddedAt:     time.Now(),
			}
			return tx.Create(&item).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	res := s.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes one line from the cart. Removing a missing line is not an error.
func (s *CartService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{}).Error
}

// Clear empties the user's cart.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}
