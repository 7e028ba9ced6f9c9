package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/farmacia/internal/models"
)

func TestConnect_SQLiteMigrates(t *testing.T) {
	db, err := Connect("sqlite", filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	defer Close(db)

	for _, table := range []interface{}{&models.User{}, &models.Product{}, &models.CartItem{}, &models.PaymentOrder{}, &models.PasswordResetToken{}} {
		require.True(t, db.Migrator().HasTable(table))
	}
	require.True(t, db.Migrator().HasIndex(&models.CartItem{}, "idx_cart_user_product"))
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "", zap.NewNop())
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestEnsureDatabase_SkipsNonURLDSN(t *testing.T) {
	require.NoError(t, ensureDatabase("host=localhost user=postgres dbname=farmacia"))
}
