package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apppayment "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

func paymentRouter(gw *MockPaymentGateway, maxPayload int64) *gin.Engine {
	h := NewPaymentHandler(gw, maxPayload)
	r := newTestRouter(nil)
	r.POST("/webhooks/stripe", h.StripeWebhook)
	r.POST("/webhooks/paypal", h.PayPalWebhook)
	r.GET("/payment/paypal/success", h.PayPalSuccess)
	return r
}

func decodeAck(t *testing.T, body []byte) webhookAck {
	t.Helper()
	var ack webhookAck
	require.NoError(t, json.Unmarshal(body, &ack))
	return ack
}

const stripeEvent = `{"id":"evt_1","type":"payment_intent.succeeded"}`

func TestPaymentHandler_StripeWebhook(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		gw.On("HandleWebhook", mock.Anything, payment.ProviderStripe, []byte(stripeEvent),
			mock.MatchedBy(func(h http.Header) bool { return h.Get("Stripe-Signature") == "t=1,v1=abc" })).
			Return(&apppayment.WebhookResult{Status: apppayment.WebhookApplied, EventID: "evt_1", Type: payment.EventCaptured, OrderID: uuid.New()}, nil)

		r := paymentRouter(gw, 0)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(stripeEvent))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "success", decodeAck(t, w.Body.Bytes()).Status)
		gw.AssertExpectations(t)
	})

	t.Run("duplicate is still acknowledged", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		gw.On("HandleWebhook", mock.Anything, payment.ProviderStripe, mock.Anything, mock.Anything).
			Return(&apppayment.WebhookResult{Status: apppayment.WebhookDuplicate, EventID: "evt_1"}, nil)

		w := serve(paymentRouter(gw, 0), http.MethodPost, "/webhooks/stripe", strings.NewReader(stripeEvent))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"bad signature", shared.ErrWebhookVerificationFailed, http.StatusBadRequest, shared.ErrWebhookVerificationFailed.Message},
		{"amount mismatch", shared.ErrAmountMismatch, http.StatusBadRequest, shared.ErrAmountMismatch.Message},
		{"provider down", &payment.ProviderError{Provider: payment.ProviderStripe, Retryable: true}, http.StatusServiceUnavailable, shared.ErrProviderUnavailable.Message},
		{"storage failure", errors.New("connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := new(MockPaymentGateway)
			gw.On("HandleWebhook", mock.Anything, payment.ProviderStripe, mock.Anything, mock.Anything).Return(nil, tc.err)

			w := serve(paymentRouter(gw, 0), http.MethodPost, "/webhooks/stripe", strings.NewReader(stripeEvent))

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.message, decodeAck(t, w.Body.Bytes()).Error)
		})
	}

	t.Run("payload too large", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		w := serve(paymentRouter(gw, 16), http.MethodPost, "/webhooks/stripe", strings.NewReader(stripeEvent))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		gw.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_PayPalWebhook(t *testing.T) {
	gw := new(MockPaymentGateway)
	gw.On("HandleWebhook", mock.Anything, payment.ProviderPayPal, mock.Anything, mock.Anything).
		Return(&apppayment.WebhookResult{Status: apppayment.WebhookIgnored, EventID: "WH-1"}, nil)

	w := serve(paymentRouter(gw, 0), http.MethodPost, "/webhooks/paypal",
		strings.NewReader(`{"id":"WH-1","event_type":"CUSTOMER.DISPUTE.CREATED"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	gw.AssertExpectations(t)
}

func TestPaymentHandler_PayPalSuccess(t *testing.T) {
	orderID := uuid.New()

	t.Run("paid", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		gw.On("CompleteRedirect", mock.Anything, "PAYID-1", "PAYER-9").
			Return(&apppayment.WebhookResult{Status: apppayment.WebhookApplied, OrderID: orderID}, nil)

		w := serve(paymentRouter(gw, 0), http.MethodGet, "/payment/paypal/success?paymentId=PAYID-1&PayerID=PAYER-9", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.RedirectResponse
		decode(t, w, &resp)
		assert.Equal(t, "applied", resp.Status)
		assert.Equal(t, orderID.String(), resp.OrderID)
	})

	t.Run("missing parameters", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		gw.On("CompleteRedirect", mock.Anything, "", "").
			Return(nil, shared.NewValidationError("paymentId", "paymentId and PayerID are required"))

		w := serve(paymentRouter(gw, 0), http.MethodGet, "/payment/paypal/success", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decode(t, w, nil)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		assert.Equal(t, "paymentId", env.Error.Field)
	})

	t.Run("declined", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		gw.On("CompleteRedirect", mock.Anything, "PAYID-1", "PAYER-9").
			Return(&apppayment.WebhookResult{Status: apppayment.WebhookApplied, OrderID: orderID}, shared.ErrPaymentDeclined)

		w := serve(paymentRouter(gw, 0), http.MethodGet, "/payment/paypal/success?paymentId=PAYID-1&PayerID=PAYER-9", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodePaymentDeclined, decode(t, w, nil).Error.Code)
	})
}

func cancelRouter(gw *MockPaymentGateway, p *shared.Principal) *gin.Engine {
	h := NewPaymentHandler(gw, 0)
	r := newTestRouter(p)
	r.GET("/payment/paypal/cancel", h.PayPalCancel)
	return r
}

func TestPaymentHandler_PayPalCancel(t *testing.T) {
	orderID := uuid.New()

	t.Run("discards order for its owner", func(t *testing.T) {
		owner := customer()
		gw := new(MockPaymentGateway)
		gw.On("CancelRedirect", mock.Anything, *owner, orderID).
			Return(&apppayment.WebhookResult{Status: apppayment.WebhookApplied, OrderID: orderID}, nil)

		w := serve(cancelRouter(gw, owner), http.MethodGet, "/payment/paypal/cancel?order_id="+orderID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		gw.AssertExpectations(t)
	})

	t.Run("someone else's order is forbidden", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		gw.On("CancelRedirect", mock.Anything, mock.Anything, orderID).Return(nil, shared.ErrForbidden)

		w := serve(cancelRouter(gw, customer()), http.MethodGet, "/payment/paypal/cancel?order_id="+orderID.String(), nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous caller is rejected", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		w := serve(cancelRouter(gw, nil), http.MethodGet, "/payment/paypal/cancel?order_id="+orderID.String(), nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		gw.AssertNotCalled(t, "CancelRedirect", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad order id", func(t *testing.T) {
		gw := new(MockPaymentGateway)
		w := serve(cancelRouter(gw, customer()), http.MethodGet, "/payment/paypal/cancel?order_id=nope", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "order_id", decode(t, w, nil).Error.Field)
		gw.AssertNotCalled(t, "CancelRedirect", mock.Anything, mock.Anything, mock.Anything)
	})
}
