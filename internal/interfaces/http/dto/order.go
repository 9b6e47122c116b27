package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apporder "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
)

// DeliveryAddressRequest is the shipping address submitted at checkout
type DeliveryAddressRequest struct {
	City           string `json:"city" binding:"required,notblank,max=255"`
	Address        string `json:"address" binding:"required,notblank,max=255"`
	BuildingNumber string `json:"building_number" binding:"required,notblank,max=50"`
}

// CheckoutRequest places an order from the caller's cart
type CheckoutRequest struct {
	PaymentMethod   string                 `json:"payment_method" binding:"required,oneof=stripe paypal cod"`
	DeliveryAddress DeliveryAddressRequest `json:"delivery_address" binding:"required"`
	Notes           string                 `json:"notes" binding:"max=1000"`
}

// ToInput converts the request for the order service
func (r CheckoutRequest) ToInput(locale shared.Locale) apporder.CheckoutInput {
	return apporder.CheckoutInput{
		PaymentMethod: r.PaymentMethod,
		DeliveryAddress: apporder.DeliveryAddressInput{
			City:           r.DeliveryAddress.City,
			Address:        r.DeliveryAddress.Address,
			BuildingNumber: r.DeliveryAddress.BuildingNumber,
		},
		Notes:  r.Notes,
		Locale: locale,
	}
}

// UpdateOrderStatusRequest changes the fulfillment status
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending shipped delivered"`
}

// AdminOrderListQuery filters the admin order listing
type AdminOrderListQuery struct {
	PageQuery
	UserID        string     `form:"user_id" binding:"omitempty,uuid"`
	Status        string     `form:"status" binding:"omitempty,oneof=pending shipped delivered"`
	PaymentStatus string     `form:"payment_status" binding:"omitempty,oneof=not_paid awaiting_payment paid refunded"`
	PaymentMethod string     `form:"payment_method" binding:"omitempty,oneof=stripe paypal cod"`
	DateFrom      *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo        *time.Time `form:"date_to" time_format:"2006-01-02"`
	SortBy        string     `form:"sort_by" binding:"omitempty,oneof=created_at total_amount order_number"`
	SortOrder     string     `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts the query for the order service. DateTo is inclusive
// of the whole day.
func (q AdminOrderListQuery) ToFilter() apporder.AdminFilter {
	page := q.ToPage()
	f := apporder.AdminFilter{
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		PaymentMethod: q.PaymentMethod,
		DateFrom:      q.DateFrom,
		SortBy:        q.SortBy,
		SortOrder:     q.SortOrder,
		Page:          page.Page,
		PageSize:      page.PageSize,
	}
	if id, err := uuid.Parse(q.UserID); err == nil {
		f.UserID = &id
	}
	if q.DateTo != nil {
		end := q.DateTo.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}
	return f
}

// OrderItemResponse is one purchased line
type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	LineTotal string `json:"line_total"`
}

// AddressResponse is the delivery address of an order
type AddressResponse struct {
	City           string `json:"city"`
	Address        string `json:"address"`
	BuildingNumber string `json:"building_number"`
}

// OrderResponse is an order as shown to its owner or an admin
type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          string              `json:"user_id"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	PaymentMethod   string              `json:"payment_method"`
	TotalAmount     string              `json:"total_amount"`
	DeliveryAddress AddressResponse     `json:"delivery_address"`
	Notes           string              `json:"notes,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CheckoutResponse is the placed order and what the client needs to pay
type CheckoutResponse struct {
	Order        OrderResponse `json:"order"`
	ClientSecret string        `json:"client_secret,omitempty"`
	ApprovalURL  string        `json:"approval_url,omitempty"`
}

// PaymentStatusResponse is the provider's view of an order payment
type PaymentStatusResponse struct {
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	Completed bool   `json:"completed"`
}

// RedirectResponse is returned from the PayPal return and cancel URLs
type RedirectResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id,omitempty"`
}

// ToOrderResponse renders an order
func ToOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID.String(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID.String(),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		TotalAmount:   money(o.TotalAmount),
		DeliveryAddress: AddressResponse{
			City:           o.DeliveryAddress.City(),
			Address:        o.DeliveryAddress.Address(),
			BuildingNumber: o.DeliveryAddress.BuildingNumber(),
		},
		Notes:     o.Notes,
		Items:     make([]OrderItemResponse, len(o.Items)),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for i, it := range o.Items {
		resp.Items[i] = OrderItemResponse{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			Price:     money(it.Price),
			LineTotal: money(it.LineTotal),
		}
	}
	return resp
}

// ToCheckoutResponse renders a checkout result
func ToCheckoutResponse(r *apporder.CheckoutResult) CheckoutResponse {
	return CheckoutResponse{
		Order:        ToOrderResponse(r.Order),
		ClientSecret: r.ClientSecret,
		ApprovalURL:  r.ApprovalURL,
	}
}

// ToPaymentStatusResponse renders a provider status
func ToPaymentStatusResponse(s *payment.StatusResult) PaymentStatusResponse {
	return PaymentStatusResponse{
		Provider:  s.Provider,
		Status:    s.Status,
		Amount:    money(s.Amount),
		Currency:  s.Currency,
		Completed: s.Completed,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
