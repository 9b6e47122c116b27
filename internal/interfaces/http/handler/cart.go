package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcart "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// CartService is the cart application service as the HTTP layer uses it
type CartService interface {
	List(ctx context.Context, userID uuid.UUID) (*appcart.Draft, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.Line, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*cart.Line, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

// CartHandler serves the authenticated user's cart
type CartHandler struct {
	BaseHandler
	carts CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// Get godoc
//
//	@Summary	Get the priced cart
//	@Tags		cart
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=dto.CartResponse}
//	@Router		/cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	draft, err := h.carts.List(c.Request.Context(), p.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCartResponse(draft, middleware.GetLocale(c)))
}

// AddItem godoc
//
//	@Summary	Add a product to the cart
//	@Tags		cart
//	@Accept		json
//	@Produce	json
//	@Param		request	body		dto.AddCartItemRequest	true	"Product and quantity"
//	@Success	201		{object}	dto.Response{data=dto.CartLineChangeResponse}
//	@Failure	422		{object}	dto.Response	"Invalid input or insufficient stock"
//	@Router		/cart [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req dto.AddCartItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.HandleError(c, shared.NewValidationError("product_id", "Invalid UUID format"))
		return
	}

	line, err := h.carts.AddItem(c.Request.Context(), p.UserID, productID, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToCartLineChangeResponse(line))
}

// UpdateItem godoc
//
//	@Summary	Set the quantity of a cart line
//	@Tags		cart
//	@Accept		json
//	@Produce	json
//	@Param		product_id	path		string						true	"Product ID"
//	@Param		request		body		dto.UpdateCartItemRequest	true	"New quantity"
//	@Success	200			{object}	dto.Response{data=dto.CartLineChangeResponse}
//	@Failure	404			{object}	dto.Response	"Product not in cart"
//	@Router		/cart/{product_id} [put]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	productID, ok := h.uuidParam(c, "product_id")
	if !ok {
		return
	}
	var req dto.UpdateCartItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	line, err := h.carts.UpdateItem(c.Request.Context(), p.UserID, productID, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCartLineChangeResponse(line))
}

// RemoveItem godoc
//
//	@Summary	Remove a product from the cart
//	@Tags		cart
//	@Param		product_id	path	string	true	"Product ID"
//	@Success	204
//	@Router		/cart/{product_id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	productID, ok := h.uuidParam(c, "product_id")
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(c.Request.Context(), p.UserID, productID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Clear godoc
//
//	@Summary	Empty the cart
//	@Tags		cart
//	@Success	204
//	@Router		/cart/clear [post]
func (h *CartHandler) Clear(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), p.UserID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
