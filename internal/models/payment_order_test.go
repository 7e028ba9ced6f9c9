package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusProcessing, PaymentStatusCompleted, true},
		{PaymentStatusProcessing, PaymentStatusFailed, true},
		{PaymentStatusProcessing, PaymentStatusPending, false},
		{PaymentStatusCompleted, PaymentStatusFailed, false},
		{PaymentStatusCompleted, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusCompleted, false},
		{PaymentStatusFailed, PaymentStatusProcessing, false},
		{PaymentStatusCompleted, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatus("SHIPPED"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCartSnapshot(t *testing.T) {
	lines := []CartLine{
		{ProductID: "p-1", Name: "Ibuprofeno 400mg", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50")},
		{ProductID: "p-2", Name: "Vitamina C", Quantity: 1, UnitPrice: decimal.RequireFromString("12.99")},
	}

	raw, err := NewCartSnapshot(lines)
	require.NoError(t, err)

	order := PaymentOrder{Items: raw}
	got := order.Lines()
	require.Len(t, got, 2)
	assert.Equal(t, "Ibuprofeno 400mg", got[0].Name)
	assert.True(t, got[1].UnitPrice.Equal(decimal.RequireFromString("12.99")))

	assert.Empty(t, PaymentOrder{Items: []byte("{broken")}.Lines())
	assert.Empty(t, PaymentOrder{}.Lines())
}
