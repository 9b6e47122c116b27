package catalog

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// IsValid reports whether the status is a known value
func (s ProductStatus) IsValid() bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

// Product is a sellable catalog item. Its quantity is only mutated through
// Decrement and Restock, which the inventory ledger drives.
type Product struct {
	shared.BaseAggregateRoot
	Name            shared.Translations
	Description     shared.Translations
	Price           decimal.Decimal
	DiscountedPrice *decimal.Decimal
	Quantity        int
	Status          ProductStatus
	// AutoDeactivated is set when the ledger, not an admin, deactivated the
	// product by selling its last unit.
	AutoDeactivated bool
}

// NewProduct creates an active product
func NewProduct(name, description shared.Translations, price decimal.Decimal, quantity int) (*Product, error) {
	if name.Get(shared.DefaultLocale) == "" {
		return nil, shared.NewValidationError("name", "Product name is required")
	}
	if price.IsNegative() {
		return nil, shared.NewValidationError("price", "Price cannot be negative")
	}
	if quantity < 0 {
		return nil, shared.NewValidationError("quantity", "Quantity cannot be negative")
	}
	return &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Description:       description,
		Price:             price,
		Quantity:          quantity,
		Status:            ProductStatusActive,
	}, nil
}

// DisplayName returns the name in the default locale, used in error messages
func (p *Product) DisplayName() string {
	return p.Name.Get(shared.DefaultLocale)
}

// IsActive returns true if the product can be put in a cart
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// SetDiscountedPrice sets or clears the discounted price; it must be below the price
func (p *Product) SetDiscountedPrice(discounted *decimal.Decimal) error {
	if discounted != nil {
		if discounted.IsNegative() {
			return shared.NewValidationError("discounted_price", "Discounted price cannot be negative")
		}
		if !discounted.LessThan(p.Price) {
			return shared.NewValidationError("discounted_price", "Discounted price must be lower than price")
		}
	}
	p.DiscountedPrice = discounted
	p.Touch()
	return nil
}

// EffectivePrice is the discounted price when set and strictly lower, else the price
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountedPrice != nil && p.DiscountedPrice.LessThan(p.Price) {
		return *p.DiscountedPrice
	}
	return p.Price
}

// SetStatus is the admin status change. It clears the auto-deactivation marker
// so a later restock does not override the admin's decision.
func (p *Product) SetStatus(status ProductStatus) error {
	if !status.IsValid() {
		return shared.NewValidationError("status", "Invalid product status")
	}
	p.Status = status
	p.AutoDeactivated = false
	p.Touch()
	return nil
}

// HasStock reports whether qty units are available
func (p *Product) HasStock(qty int) bool {
	return qty <= p.Quantity
}

// Decrement removes qty units. Reaching exactly zero deactivates an active product.
func (p *Product) Decrement(qty int) error {
	if qty < 1 {
		return shared.NewValidationError("quantity", "Quantity must be at least 1")
	}
	if !p.HasStock(qty) {
		return shared.NewInsufficientStockError(p.DisplayName())
	}
	p.Quantity -= qty
	if p.Quantity == 0 && p.Status == ProductStatusActive {
		p.Status = ProductStatusInactive
		p.AutoDeactivated = true
	}
	p.UpdatedAt = time.Now()
	p.Version++
	return nil
}

// Restock returns qty units and applies the reactivation policy
func (p *Product) Restock(qty int, policy ReactivationPolicy) error {
	if qty < 1 {
		return shared.NewValidationError("quantity", "Quantity must be at least 1")
	}
	p.Quantity += qty
	if policy.ShouldReactivate(p) {
		p.Status = ProductStatusActive
		p.AutoDeactivated = false
	}
	p.Touch()
	return nil
}
