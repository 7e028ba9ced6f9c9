package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentStatus is the lifecycle state of a PaymentOrder.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// PaymentMethodPayPal labels orders paid through PayPal.
const PaymentMethodPayPal = "PayPal"

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// CanTransitionTo reports whether moving from s to next only goes forward.
// Rewriting the same status is allowed.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case PaymentStatusPending:
		return next != PaymentStatusPending
	case PaymentStatusProcessing:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed
	}
	return false
}

// CartLine is one line of the cart snapshot captured when a payment order is created.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PaymentOrder is the durable record of one checkout attempt.
type PaymentOrder struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	LocalID         string          `gorm:"uniqueIndex;not null" json:"local_id"`
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Items           datatypes.JSON  `json:"items"`
	Status          PaymentStatus   `gorm:"type:varchar(16);index;not null" json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	ProviderOrderID *string         `gorm:"index" json:"provider_order_id"`
	ProviderPayerID *string         `json:"provider_payer_id"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Synced          bool            `gorm:"index;not null;default:false" json:"synced"`
	ErrorMessage    *string         `json:"error_message"`
}

// NewCartSnapshot serializes the cart lines for storage on a PaymentOrder.
func NewCartSnapshot(lines []CartLine) (datatypes.JSON, error) {
	if lines == nil {
		lines = []CartLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// Lines decodes the cart snapshot. A malformed snapshot yields no lines.
func (o PaymentOrder) Lines() []CartLine {
	var lines []CartLine
	if len(o.Items) == 0 {
		return []CartLine{}
	}
	if err := json.Unmarshal(o.Items, &lines); err != nil {
		return []CartLine{}
	}
	return lines
}
