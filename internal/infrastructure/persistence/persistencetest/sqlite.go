// Package persistencetest provides an in-memory SQLite database with the
// storefront schema for repository and service tests.
package persistencetest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory database and migrates all models.
// The pool is limited to one connection: every connection to ":memory:" is
// a separate database, and a single connection also serializes transactions
// the way row locks do on PostgreSQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// SeedProduct inserts an active product with an English name
func SeedProduct(t *testing.T, db *gorm.DB, name, price string, qty int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(shared.Translations{shared.LocaleEN: name}, nil, decimal.RequireFromString(price), qty)
	require.NoError(t, err)
	require.NoError(t, db.Create(models.ProductModelFromDomain(p)).Error)
	return p
}

// SeedDiscountedProduct inserts a product with a discounted price
func SeedDiscountedProduct(t *testing.T, db *gorm.DB, name, price, discounted string, qty int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(shared.Translations{shared.LocaleEN: name}, nil, decimal.RequireFromString(price), qty)
	require.NoError(t, err)
	d := decimal.RequireFromString(discounted)
	require.NoError(t, p.SetDiscountedPrice(&d))
	require.NoError(t, db.Create(models.ProductModelFromDomain(p)).Error)
	return p
}

// ProductQuantity reads the current stock of a product
func ProductQuantity(t *testing.T, db *gorm.DB, p *catalog.Product) int {
	t.Helper()
	var m models.ProductModel
	require.NoError(t, db.First(&m, "id = ?", p.ID).Error)
	return m.Quantity
}
