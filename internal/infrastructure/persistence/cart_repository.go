package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCartRepository implements cart.Repository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// FindByUser returns all lines for a user, oldest first
func (r *GormCartRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]cart.Line, error) {
	var rows []models.CartItemModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	lines := make([]cart.Line, len(rows))
	for i := range rows {
		lines[i] = *rows[i].ToDomain()
	}
	return lines, nil
}

// FindLine finds the user's line for a product
func (r *GormCartRepository) FindLine(ctx context.Context, userID, productID uuid.UUID) (*cart.Line, error) {
	var model models.CartItemModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Product not in cart")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a line
func (r *GormCartRepository) Save(ctx context.Context, line *cart.Line) error {
	return r.db.WithContext(ctx).Save(models.CartItemModelFromDomain(line)).Error
}

// SaveAll inserts lines in one statement
func (r *GormCartRepository) SaveAll(ctx context.Context, lines []cart.Line) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]*models.CartItemModel, len(lines))
	for i := range lines {
		rows[i] = models.CartItemModelFromDomain(&lines[i])
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// Delete removes one line
func (r *GormCartRepository) Delete(ctx context.Context, userID, productID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItemModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound.WithMessage("Product not in cart")
	}
	return nil
}

// DeleteByUser empties the user's cart
func (r *GormCartRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItemModel{}).Error
}

// Ensure GormCartRepository implements cart.Repository
var _ cart.Repository = (*GormCartRepository)(nil)
