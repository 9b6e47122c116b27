package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// Line is one product in a user's cart. (UserID, ProductID) is unique.
type Line struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLine creates a cart line with quantity ≥ 1
func NewLine(userID, productID uuid.UUID, quantity int) (*Line, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Line{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetQuantity replaces the line quantity
func (l *Line) SetQuantity(quantity int) error {
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	l.Quantity = quantity
	l.UpdatedAt = time.Now()
	return nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return shared.NewValidationError("quantity", "Quantity must be at least 1")
	}
	return nil
}

// Repository persists cart lines
type Repository interface {
	// FindByUser returns all lines for a user, oldest first
	FindByUser(ctx context.Context, userID uuid.UUID) ([]Line, error)

	// FindLine returns shared.ErrNotFound when the user has no line for the product
	FindLine(ctx context.Context, userID, productID uuid.UUID) (*Line, error)

	// Save creates or updates a line
	Save(ctx context.Context, line *Line) error

	// SaveAll inserts lines, used to restore a cart after a failed checkout
	SaveAll(ctx context.Context, lines []Line) error

	// Delete removes one line; shared.ErrNotFound when absent
	Delete(ctx context.Context, userID, productID uuid.UUID) error

	// DeleteByUser empties the user's cart
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
