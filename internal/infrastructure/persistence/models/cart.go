package models

import (
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
)

// CartItemModel is the persistence model for a cart line
type CartItemModel struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product,priority:1"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product,priority:2"`
	Quantity  int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartItemModel) TableName() string {
	return "cart_items"
}

// ToDomain converts the persistence model to a domain cart line
func (m *CartItemModel) ToDomain() *cart.Line {
	return &cart.Line{
		ID:        m.ID,
		UserID:    m.UserID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CartItemModelFromDomain creates a new persistence model from a cart line
func CartItemModelFromDomain(l *cart.Line) *CartItemModel {
	return &CartItemModel{
		BaseModel: BaseModel{ID: l.ID, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt},
		UserID:    l.UserID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
	}
}
