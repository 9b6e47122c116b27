package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apporder "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

func orderRouter(p *shared.Principal, svc *MockOrderService) *gin.Engine {
	h := NewOrderHandler(svc)
	r := newTestRouter(p)
	r.POST("/orders", h.Checkout)
	r.GET("/orders", h.List)
	r.GET("/orders/:id", h.Get)
	r.GET("/orders/:id/payment-status", h.PaymentStatus)
	r.POST("/orders/:id/refund", h.Refund)
	r.PUT("/orders/:id/status", h.UpdateStatus)
	r.DELETE("/orders/:id", h.Delete)
	r.GET("/admin/orders", h.ListAll)
	return r
}

func testOrder(t *testing.T, userID uuid.UUID, method order.PaymentMethod) *order.Order {
	t.Helper()
	addr, err := valueobject.NewDeliveryAddress("Dammam", "King Saud St", "12")
	require.NoError(t, err)
	o, err := order.NewOrder("ORD-20260501-K7Q2ZP", userID, method, addr, "", []order.ItemDraft{
		{ProductID: uuid.New(), Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")},
	})
	require.NoError(t, err)
	return o
}

const checkoutBody = `{
	"payment_method": "stripe",
	"delivery_address": {"city": "Dammam", "address": "King Saud St", "building_number": "12"},
	"notes": "leave at the door"
}`

func TestOrderHandler_Checkout(t *testing.T) {
	p := customer()

	t.Run("stripe returns client secret", func(t *testing.T) {
		o := testOrder(t, p.UserID, order.PaymentMethodStripe)
		svc := new(MockOrderService)
		svc.On("CreateOrder", mock.Anything, *p, apporder.CheckoutInput{
			PaymentMethod: "stripe",
			DeliveryAddress: apporder.DeliveryAddressInput{
				City: "Dammam", Address: "King Saud St", BuildingNumber: "12",
			},
			Notes:  "leave at the door",
			Locale: shared.LocaleAR,
		}).Return(&apporder.CheckoutResult{Order: o, ClientSecret: "pi_123_secret_456"}, nil)

		req := strings.NewReader(checkoutBody)
		r := orderRouter(p, svc)
		w := serve(r, http.MethodPost, "/orders?lang=ar", req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp dto.CheckoutResponse
		decode(t, w, &resp)
		assert.Equal(t, "pi_123_secret_456", resp.ClientSecret)
		assert.Empty(t, resp.ApprovalURL)
		assert.Equal(t, "59.97", resp.Order.TotalAmount)
		assert.Equal(t, "awaiting_payment", resp.Order.PaymentStatus)
		svc.AssertExpectations(t)
	})

	t.Run("empty cart", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("CreateOrder", mock.Anything, *p, mock.Anything).Return(nil, shared.ErrEmptyCart)

		w := serve(orderRouter(p, svc), http.MethodPost, "/orders", strings.NewReader(checkoutBody))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeEmptyCart, decode(t, w, nil).Error.Code)
	})

	t.Run("invalid payment method and blank address", func(t *testing.T) {
		svc := new(MockOrderService)
		body := `{"payment_method":"bitcoin","delivery_address":{"city":" ","address":"x","building_number":"1"}}`

		w := serve(orderRouter(p, svc), http.MethodPost, "/orders", strings.NewReader(body))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decode(t, w, nil)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		fields := []string{}
		for _, d := range env.Error.Details {
			fields = append(fields, d.Field)
		}
		assert.Contains(t, fields, "payment_method")
		assert.Contains(t, fields, "city")
		svc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_List(t *testing.T) {
	p := customer()
	o := testOrder(t, p.UserID, order.PaymentMethodCashOnDelivery)
	svc := new(MockOrderService)
	page := shared.Page{Page: 2, PageSize: 1}
	svc.On("ListForUser", mock.Anything, *p, page).
		Return(shared.NewPaginated([]order.Order{*o}, 3, page), nil)

	w := serve(orderRouter(p, svc), http.MethodGet, "/orders?page=2&page_size=1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var items []dto.OrderResponse
	env := decode(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, o.ID.String(), items[0].ID)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(3), env.Meta.Total)
	assert.Equal(t, 3, env.Meta.TotalPages)
}

func TestOrderHandler_Get(t *testing.T) {
	p := customer()
	o := testOrder(t, p.UserID, order.PaymentMethodPayPal)

	t.Run("owner", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Get", mock.Anything, *p, o.ID).Return(o, nil)

		w := serve(orderRouter(p, svc), http.MethodGet, "/orders/"+o.ID.String(), nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.OrderResponse
		decode(t, w, &resp)
		assert.Equal(t, "ORD-20260501-K7Q2ZP", resp.OrderNumber)
		assert.Equal(t, "Dammam", resp.DeliveryAddress.City)
	})

	t.Run("someone else", func(t *testing.T) {
		other := customer()
		svc := new(MockOrderService)
		svc.On("Get", mock.Anything, *other, o.ID).Return(nil, shared.ErrForbidden)

		w := serve(orderRouter(other, svc), http.MethodGet, "/orders/"+o.ID.String(), nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := serve(orderRouter(p, new(MockOrderService)), http.MethodGet, "/orders/123", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestOrderHandler_PaymentStatus(t *testing.T) {
	p := customer()
	id := uuid.New()

	t.Run("provider view", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("PaymentStatus", mock.Anything, *p, id).Return(&payment.StatusResult{
			Provider: payment.ProviderStripe, Status: "succeeded",
			Amount: decimal.RequireFromString("59.97"), Currency: "usd", Completed: true,
		}, nil)

		w := serve(orderRouter(p, svc), http.MethodGet, "/orders/"+id.String()+"/payment-status", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.PaymentStatusResponse
		decode(t, w, &resp)
		assert.Equal(t, "succeeded", resp.Status)
		assert.True(t, resp.Completed)
	})

	t.Run("provider down", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("PaymentStatus", mock.Anything, *p, id).Return(nil, &payment.ProviderError{
			Provider: payment.ProviderStripe, Op: "status", Retryable: true, Message: "timeout",
		})

		w := serve(orderRouter(p, svc), http.MethodGet, "/orders/"+id.String()+"/payment-status", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodeProviderDown, decode(t, w, nil).Error.Code)
	})
}

func TestOrderHandler_AdminOperations(t *testing.T) {
	a := admin()
	o := testOrder(t, uuid.New(), order.PaymentMethodStripe)

	t.Run("refund unpaid order", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Refund", mock.Anything, *a, o.ID).Return(nil, shared.ErrNotPaid)

		w := serve(orderRouter(a, svc), http.MethodPost, "/orders/"+o.ID.String()+"/refund", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeNotPaid, decode(t, w, nil).Error.Code)
	})

	t.Run("update status", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("UpdateStatus", mock.Anything, *a, o.ID, "shipped").Return(o, nil)

		w := serve(orderRouter(a, svc), http.MethodPut, "/orders/"+o.ID.String()+"/status",
			strings.NewReader(`{"status":"shipped"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("update status rejects unknown value", func(t *testing.T) {
		svc := new(MockOrderService)
		w := serve(orderRouter(a, svc), http.MethodPut, "/orders/"+o.ID.String()+"/status",
			strings.NewReader(`{"status":"lost"}`))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		svc.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete paid order", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Delete", mock.Anything, *a, o.ID).
			Return(shared.ErrInvalidState.WithMessage("Paid orders cannot be deleted"))

		w := serve(orderRouter(a, svc), http.MethodDelete, "/orders/"+o.ID.String(), nil)

		assert.Equal(t, dto.GetHTTPStatus(dto.ErrCodeInvalidState), w.Code)
		assert.Equal(t, "Paid orders cannot be deleted", decode(t, w, nil).Error.Message)
	})

	t.Run("delete", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Delete", mock.Anything, *a, o.ID).Return(nil)

		w := serve(orderRouter(a, svc), http.MethodDelete, "/orders/"+o.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestOrderHandler_ListAll(t *testing.T) {
	a := admin()
	userID := uuid.New()

	t.Run("maps filters", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("ListAll", mock.Anything, *a, mock.MatchedBy(func(f apporder.AdminFilter) bool {
			return f.UserID != nil && *f.UserID == userID &&
				f.PaymentStatus == "paid" &&
				f.DateFrom != nil && f.DateFrom.Format(time.DateOnly) == "2026-05-01" &&
				f.DateTo != nil && f.DateTo.Day() == 31 &&
				f.Page == 1 && f.PageSize == shared.DefaultPageSize
		})).Return(shared.NewPaginated([]order.Order{}, 0, shared.Page{Page: 1, PageSize: shared.DefaultPageSize}), nil)

		w := serve(orderRouter(a, svc), http.MethodGet,
			"/admin/orders?user_id="+userID.String()+"&payment_status=paid&date_from=2026-05-01&date_to=2026-05-31", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("rejects inverted date range", func(t *testing.T) {
		svc := new(MockOrderService)
		w := serve(orderRouter(a, svc), http.MethodGet, "/admin/orders?date_from=2026-05-31&date_to=2026-05-01", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "date_to", decode(t, w, nil).Error.Field)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		w := serve(orderRouter(a, new(MockOrderService)), http.MethodGet, "/admin/orders?payment_status=lost", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
