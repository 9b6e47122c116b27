package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
)

// DeliveryAddressInput is the raw address supplied at checkout
type DeliveryAddressInput struct {
	City           string
	Address        string
	BuildingNumber string
}

// CheckoutInput is what a user submits to place an order
type CheckoutInput struct {
	PaymentMethod   string
	DeliveryAddress DeliveryAddressInput
	Notes           string
	Locale          shared.Locale
}

// CheckoutResult is the created order plus what the client needs to pay
type CheckoutResult struct {
	Order        *order.Order
	ClientSecret string
	ApprovalURL  string
}

// TransitionOutcome reports whether a reconciliation transition changed state.
// Order is nil when the order was deleted or did not exist.
type TransitionOutcome struct {
	Applied bool
	Order   *order.Order
}

// AdminFilter narrows the admin order listing
type AdminFilter struct {
	UserID        *uuid.UUID
	Status        string
	PaymentStatus string
	PaymentMethod string
	DateFrom      *time.Time
	DateTo        *time.Time
	SortBy        string
	SortOrder     string
	Page          int
	PageSize      int
}
