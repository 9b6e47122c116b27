package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// Filter narrows order listings
type Filter struct {
	UserID        *uuid.UUID
	Status        FulfillmentStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
	SortBy        string
	SortOrder     string
	shared.Page
}

// Repository persists orders together with their items
type Repository interface {
	// FindByID loads an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUpdate loads an order and holds its row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByPaymentRef finds an order by its provider correlation id
	FindByPaymentRef(ctx context.Context, method PaymentMethod, ref string) (*Order, error)

	// ExistsByNumber checks whether an order number is taken
	ExistsByNumber(ctx context.Context, number string) (bool, error)

	// FindAll lists orders newest first and returns the total count
	FindAll(ctx context.Context, filter Filter) ([]Order, int64, error)

	// Save creates the order with its items, or updates the order row
	Save(ctx context.Context, order *Order) error

	// Delete removes the order and its items
	Delete(ctx context.Context, id uuid.UUID) error
}
