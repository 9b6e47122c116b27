package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockStatsProvider implements StockStatsProvider with aggregate
// queries on the products and orders tables.
type GormStockStatsProvider struct {
	db *gorm.DB
}

// NewGormStockStatsProvider creates a new GormStockStatsProvider.
func NewGormStockStatsProvider(db *gorm.DB) *GormStockStatsProvider {
	return &GormStockStatsProvider{db: db}
}

// StockStats implements StockStatsProvider.
func (p *GormStockStatsProvider) StockStats(ctx context.Context) (StockStats, error) {
	var stats StockStats
	db := p.db.WithContext(ctx)

	if err := db.Table("products").
		Where("status = ? AND quantity <= 0", "active").
		Count(&stats.OutOfStock).Error; err != nil {
		return StockStats{}, err
	}
	if err := db.Table("products").
		Where("auto_deactivated = ?", true).
		Count(&stats.AutoDeactivated).Error; err != nil {
		return StockStats{}, err
	}
	if err := db.Table("orders").
		Where("payment_status = ?", "awaiting_payment").
		Count(&stats.AwaitingPayment).Error; err != nil {
		return StockStats{}, err
	}
	return stats, nil
}
