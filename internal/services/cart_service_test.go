package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/farmacia/internal/models"
	"github.com/example/farmacia/internal/testutil"
)

func seedProduct(t *testing.T, db *gorm.DB, name, price string) models.Product {
	t.Helper()
	product := models.Product{
		Name:     name,
		Category: "Analgésicos",
		Price:    decimal.RequireFromString(price),
		ImageURL: "https://cdn.example/" + name + ".png",
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func TestCartService_AddIncrementsExistingLine(t *testing.T) {
	db := testutil.NewDB(t)
	cart := NewCartService(db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "Aspirina", "2.50")

	item, err := cart.Add(ctx, userID, product.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, "Aspirina", item.Name)

	item, err = cart.Add(ctx, userID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)

	items, err := cart.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestCartService_AddValidation(t *testing.T) {
	db := testutil.NewDB(t)
	cart := NewCartService(db)
	ctx := context.Background()

	_, err := cart.Add(ctx, uuid.New(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	product := seedProduct(t, db, "Loratadina", "6.00")
	_, err = cart.Add(ctx, uuid.New(), product.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	db := testutil.NewDB(t)
	cart := NewCartService(db)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "Omeprazol", "8.00")

	_, err := cart.Add(ctx, userID, product.ID, 1)
	require.NoError(t, err)

	require.NoError(t, cart.UpdateQuantity(ctx, userID, product.ID, 5))
	items, err := cart.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)

	require.NoError(t, cart.UpdateQuantity(ctx, userID, product.ID, 0))
	items, err = cart.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, cart.UpdateQuantity(ctx, userID, product.ID, 2), ErrNotFound)
}

func TestCartService_SummaryAndClear(t *testing.T) {
	db := testutil.NewDB(t)
	cart := NewCartService(db)
	ctx := context.Background()
	userID := uuid.New()
	a := seedProduct(t, db, "Ibuprofeno", "4.50")
	b := seedProduct(t, db, "Jarabe", "10.99")

	_, err := cart.Add(ctx, userID, a.ID, 2)
	require.NoError(t, err)
	_, err = cart.Add(ctx, userID, b.ID, 1)
	require.NoError(t, err)
	_, err = cart.Add(ctx, uuid.New(), b.ID, 4)
	require.NoError(t, err)

	summary, err := cart.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, "19.99", summary.Total.StringFixed(2))

	lines := summary.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, a.ID.String(), lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)

	require.NoError(t, cart.Remove(ctx, userID, a.ID))
	summary, err = cart.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalItems)

	require.NoError(t, cart.Clear(ctx, userID))
	summary, err = cart.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalItems)
	assert.True(t, summary.Total.IsZero())
}
