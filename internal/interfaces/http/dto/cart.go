package dto

import (
	"time"

	"github.com/storefront/backend/internal/application/cart"
	domaincart "github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
)

// AddCartItemRequest adds quantity of a product to the caller's cart
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=1000"`
}

// UpdateCartItemRequest sets the quantity of an existing line
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=1000"`
}

// CartLineResponse is one priced cart line. Name is resolved for the
// request locale.
type CartLineResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
	Available int    `json:"available"`
}

// CartResponse is the priced cart
type CartResponse struct {
	Lines     []CartLineResponse `json:"lines"`
	Total     string             `json:"total"`
	ItemCount int                `json:"item_count"`
}

// CartLineChangeResponse echoes a stored cart line after add or update
type CartLineChangeResponse struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToCartResponse renders a priced draft for the given locale
func ToCartResponse(d *cart.Draft, locale shared.Locale) CartResponse {
	resp := CartResponse{Lines: make([]CartLineResponse, len(d.Lines)), Total: money(d.Total)}
	for i, l := range d.Lines {
		resp.Lines[i] = CartLineResponse{
			ProductID: l.ProductID.String(),
			Name:      l.Name.Get(locale),
			Quantity:  l.Quantity,
			UnitPrice: money(l.UnitPrice),
			LineTotal: money(l.LineTotal),
			Available: l.Available,
		}
		resp.ItemCount += l.Quantity
	}
	return resp
}

// ToCartLineChangeResponse renders a stored cart line
func ToCartLineChangeResponse(l *domaincart.Line) CartLineChangeResponse {
	return CartLineChangeResponse{
		ProductID: l.ProductID.String(),
		Quantity:  l.Quantity,
		UpdatedAt: l.UpdatedAt,
	}
}
