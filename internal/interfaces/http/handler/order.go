package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apporder "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// OrderService is the order lifecycle as the HTTP layer uses it
type OrderService interface {
	CreateOrder(ctx context.Context, principal shared.Principal, in apporder.CheckoutInput) (*apporder.CheckoutResult, error)
	Get(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*order.Order, error)
	ListForUser(ctx context.Context, principal shared.Principal, page shared.Page) (shared.Paginated[order.Order], error)
	ListAll(ctx context.Context, principal shared.Principal, f apporder.AdminFilter) (shared.Paginated[order.Order], error)
	PaymentStatus(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*payment.StatusResult, error)
	Refund(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*order.Order, error)
	UpdateStatus(ctx context.Context, principal shared.Principal, orderID uuid.UUID, status string) (*order.Order, error)
	Delete(ctx context.Context, principal shared.Principal, orderID uuid.UUID) error
}

// OrderHandler serves checkout, order history and order administration.
// Admin-only operations are also enforced by the service, so a route
// wired without RequireAdmin still answers 403.
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Checkout godoc
//
//	@Summary		Place an order from the cart
//	@Description	Reserves stock, creates the order and starts the provider payment. Stripe orders return a client secret, PayPal orders an approval URL.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.CheckoutRequest	true	"Checkout"
//	@Success		201		{object}	dto.Response{data=dto.CheckoutResponse}
//	@Failure		422		{object}	dto.Response	"Empty cart, insufficient stock or payment init failure"
//	@Failure		503		{object}	dto.Response	"Payment provider unavailable"
//	@Router			/orders [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req dto.CheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.orders.CreateOrder(c.Request.Context(), p, req.ToInput(middleware.GetLocale(c)))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToCheckoutResponse(result))
}

// List godoc
//
//	@Summary	List the caller's orders
//	@Tags		orders
//	@Produce	json
//	@Param		page		query		int	false	"Page"
//	@Param		page_size	query		int	false	"Page size"
//	@Success	200			{object}	dto.Response{data=[]dto.OrderResponse}
//	@Router		/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var q dto.PageQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.orders.ListForUser(c.Request.Context(), p, q.ToPage())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Paginated(c, dto.NewPaginatedResponse(page, dto.ToOrderResponse))
}

// Get godoc
//
//	@Summary	Get an order
//	@Tags		orders
//	@Produce	json
//	@Param		id	path		string	true	"Order ID"
//	@Success	200	{object}	dto.Response{data=dto.OrderResponse}
//	@Failure	403	{object}	dto.Response	"Not the owner"
//	@Failure	404	{object}	dto.Response
//	@Router		/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	h.withOrderID(c, func(p shared.Principal, id uuid.UUID) {
		o, err := h.orders.Get(c.Request.Context(), p, id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.ToOrderResponse(o))
	})
}

// PaymentStatus godoc
//
//	@Summary	Ask the payment provider for the order's payment state
//	@Tags		orders
//	@Produce	json
//	@Param		id	path		string	true	"Order ID"
//	@Success	200	{object}	dto.Response{data=dto.PaymentStatusResponse}
//	@Failure	503	{object}	dto.Response	"Payment provider unavailable"
//	@Router		/orders/{id}/payment-status [get]
func (h *OrderHandler) PaymentStatus(c *gin.Context) {
	h.withOrderID(c, func(p shared.Principal, id uuid.UUID) {
		status, err := h.orders.PaymentStatus(c.Request.Context(), p, id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.ToPaymentStatusResponse(status))
	})
}

// Refund godoc
//
//	@Summary	Refund a paid order (admin)
//	@Tags		admin
//	@Produce	json
//	@Param		id	path		string	true	"Order ID"
//	@Success	200	{object}	dto.Response{data=dto.OrderResponse}
//	@Failure	422	{object}	dto.Response	"Order not paid"
//	@Router		/orders/{id}/refund [post]
func (h *OrderHandler) Refund(c *gin.Context) {
	h.withOrderID(c, func(p shared.Principal, id uuid.UUID) {
		o, err := h.orders.Refund(c.Request.Context(), p, id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.ToOrderResponse(o))
	})
}

// UpdateStatus godoc
//
//	@Summary	Change the fulfillment status (admin)
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string							true	"Order ID"
//	@Param		request	body		dto.UpdateOrderStatusRequest	true	"Status"
//	@Success	200		{object}	dto.Response{data=dto.OrderResponse}
//	@Router		/orders/{id}/status [put]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	h.withOrderID(c, func(p shared.Principal, id uuid.UUID) {
		var req dto.UpdateOrderStatusRequest
		if !h.bindJSON(c, &req) {
			return
		}
		o, err := h.orders.UpdateStatus(c.Request.Context(), p, id, req.Status)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.ToOrderResponse(o))
	})
}

// Delete godoc
//
//	@Summary	Delete an unpaid order and release its stock (admin)
//	@Tags		admin
//	@Param		id	path	string	true	"Order ID"
//	@Success	204
//	@Failure	422	{object}	dto.Response	"Order is paid or refunded"
//	@Router		/orders/{id} [delete]
func (h *OrderHandler) Delete(c *gin.Context) {
	h.withOrderID(c, func(p shared.Principal, id uuid.UUID) {
		if err := h.orders.Delete(c.Request.Context(), p, id); err != nil {
			h.HandleError(c, err)
			return
		}
		h.NoContent(c)
	})
}

// ListAll godoc
//
//	@Summary	List all orders with filters (admin)
//	@Tags		admin
//	@Produce	json
//	@Param		user_id			query		string	false	"Owner"
//	@Param		status			query		string	false	"pending, shipped or delivered"
//	@Param		payment_status	query		string	false	"not_paid, awaiting_payment, paid or refunded"
//	@Param		payment_method	query		string	false	"stripe, paypal or cod"
//	@Param		date_from		query		string	false	"YYYY-MM-DD"
//	@Param		date_to			query		string	false	"YYYY-MM-DD, inclusive"
//	@Success	200				{object}	dto.Response{data=[]dto.OrderResponse}
//	@Router		/admin/orders [get]
func (h *OrderHandler) ListAll(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var q dto.AdminOrderListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		h.HandleError(c, shared.NewValidationError("date_to", "date_to must not be before date_from"))
		return
	}

	page, err := h.orders.ListAll(c.Request.Context(), p, q.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Paginated(c, dto.NewPaginatedResponse(page, dto.ToOrderResponse))
}

func (h *OrderHandler) withOrderID(c *gin.Context, fn func(shared.Principal, uuid.UUID)) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	fn(p, id)
}
