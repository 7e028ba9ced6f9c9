package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one product line in a user's cart. Product fields are copied when the
// line is first added so the cart renders without joining the catalog.
type CartItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	ImageURL    string          `json:"image_url"`
	AddedAt     time.Time       `json:"added_at"`
}

// LineTotal is unit price times quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// Line converts the cart row into the snapshot form stored on payment orders.
func (c CartItem) Line() CartLine {
	return CartLine{
		ProductID: c.ProductID.String(),
		Name:      c.Name,
		Quantity:  c.Quantity,
		UnitPrice: c.UnitPrice,
	}
}
