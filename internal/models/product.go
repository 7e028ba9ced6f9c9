package models

import "github.com/shopspring/decimal"

// Product is a catalog entry sold by the pharmacy.
type Product struct {
	BaseModel
	Name        string          `gorm:"index;not null" json:"name"`
	Category    string          `gorm:"index" json:"category"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	ImageURL    string          `json:"image_url"`
}
