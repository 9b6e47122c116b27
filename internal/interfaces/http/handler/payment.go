package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apppayment "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MaxWebhookPayloadSize caps provider webhook bodies; real events are a few KiB
const MaxWebhookPayloadSize = 64 << 10

// PaymentGateway is the reconciliation service as the HTTP layer uses it
type PaymentGateway interface {
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*apppayment.WebhookResult, error)
	CompleteRedirect(ctx context.Context, paymentID, payerID string) (*apppayment.WebhookResult, error)
	CancelRedirect(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*apppayment.WebhookResult, error)
}

// PaymentHandler receives provider webhooks and PayPal browser redirects.
// Webhooks are authenticated by provider signature and the success redirect
// is settled against the provider. Cancel requires the payer's token.
type PaymentHandler struct {
	BaseHandler
	gateway    PaymentGateway
	maxPayload int64
}

// NewPaymentHandler creates a new PaymentHandler. A non-positive
// maxPayload uses MaxWebhookPayloadSize.
func NewPaymentHandler(gateway PaymentGateway, maxPayload int64) *PaymentHandler {
	if maxPayload <= 0 {
		maxPayload = MaxWebhookPayloadSize
	}
	return &PaymentHandler{gateway: gateway, maxPayload: maxPayload}
}

// webhookAck is the body providers see. They only look at the status code.
type webhookAck struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StripeWebhook godoc
//
//	@Summary	Receive a Stripe event
//	@Tags		webhooks
//	@Accept		json
//	@Produce	json
//	@Param		Stripe-Signature	header		string	true	"Stripe webhook signature"
//	@Success	200					{object}	webhookAck
//	@Failure	400					{object}	webhookAck	"Verification or processing failure"
//	@Failure	503					{object}	webhookAck	"Provider unavailable, retry later"
//	@Router		/webhooks/stripe [post]
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	h.webhook(c, payment.ProviderStripe)
}

// PayPalWebhook godoc
//
//	@Summary	Receive a PayPal event
//	@Tags		webhooks
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	webhookAck
//	@Failure	400	{object}	webhookAck	"Verification or processing failure"
//	@Failure	503	{object}	webhookAck	"Provider unavailable, retry later"
//	@Router		/webhooks/paypal [post]
func (h *PaymentHandler) PayPalWebhook(c *gin.Context) {
	h.webhook(c, payment.ProviderPayPal)
}

func (h *PaymentHandler) webhook(c *gin.Context, provider string) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "payment.webhook",
		attribute.String(telemetry.SpanAttrProvider, provider))
	defer span.End()
	log := logger.GetGinLogger(c).With(zap.String("provider", provider))

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPayload))
	if err != nil {
		telemetry.RecordError(span, err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, webhookAck{Error: "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, webhookAck{Error: "failed to read request body"})
		return
	}

	result, err := h.gateway.HandleWebhook(ctx, provider, payload, c.Request.Header)
	if err != nil {
		telemetry.RecordError(span, err)
		status, message := webhookFailure(err)
		if status >= http.StatusInternalServerError {
			log.Warn("Webhook not processed, provider will retry", zap.Error(err))
		} else {
			log.Info("Webhook rejected", zap.Error(err))
		}
		c.JSON(status, webhookAck{Error: message})
		return
	}

	span.SetAttributes(
		attribute.String(telemetry.SpanAttrEventID, result.EventID),
		attribute.String(telemetry.SpanAttrEventType, string(result.Type)),
		attribute.String(telemetry.SpanAttrOutcome, string(result.Status)),
	)
	telemetry.SetOK(span)
	c.JSON(http.StatusOK, webhookAck{Status: "success"})
}

// webhookFailure maps a reconciliation error to the provider-facing status.
// Unavailability is 503 so the provider redelivers; domain failures are
// 400; anything unexpected is 500, which providers also retry.
func webhookFailure(err error) (int, string) {
	if payment.IsUnavailable(err) {
		return http.StatusServiceUnavailable, shared.ErrProviderUnavailable.Message
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return http.StatusBadRequest, domainErr.Message
	}
	return http.StatusInternalServerError, "internal error"
}

// PayPalSuccess godoc
//
//	@Summary		PayPal return URL
//	@Description	Executes the approved PayPal payment and marks the order paid.
//	@Tags			payments
//	@Produce		json
//	@Param			paymentId	query		string	true	"PayPal payment id"
//	@Param			PayerID		query		string	true	"PayPal payer id"
//	@Success		200			{object}	dto.Response{data=dto.RedirectResponse}
//	@Failure		422			{object}	dto.Response	"Missing parameters or payment declined"
//	@Failure		503			{object}	dto.Response	"PayPal unavailable"
//	@Router			/payment/paypal/success [get]
func (h *PaymentHandler) PayPalSuccess(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "payment.paypal.redirect",
		attribute.String(telemetry.SpanAttrProvider, payment.ProviderPayPal))
	defer span.End()

	result, err := h.gateway.CompleteRedirect(ctx, c.Query("paymentId"), c.Query("PayerID"))
	if err != nil {
		telemetry.RecordError(span, err)
		h.HandleError(c, err)
		return
	}
	span.SetAttributes(attribute.String(telemetry.SpanAttrOutcome, string(result.Status)))
	h.Success(c, toRedirectResponse(result))
}

// PayPalCancel godoc
//
//	@Summary	PayPal cancel URL
//	@Tags		payments
//	@Produce	json
//	@Security	BearerAuth
//	@Param		order_id	query		string	true	"Order ID"
//	@Success	200			{object}	dto.Response{data=dto.RedirectResponse}
//	@Failure	403			{object}	dto.Response	"Not the order owner"
//	@Router		/payment/paypal/cancel [get]
func (h *PaymentHandler) PayPalCancel(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(c.Query("order_id"))
	if err != nil {
		h.HandleError(c, shared.NewValidationError("order_id", "order_id is required"))
		return
	}

	result, err := h.gateway.CancelRedirect(c.Request.Context(), p, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRedirectResponse(result))
}

func toRedirectResponse(r *apppayment.WebhookResult) dto.RedirectResponse {
	resp := dto.RedirectResponse{Status: string(r.Status)}
	if r.OrderID != uuid.Nil {
		resp.OrderID = r.OrderID.String()
	}
	return resp
}
