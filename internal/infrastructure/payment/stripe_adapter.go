package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	pay "github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

const stripeSignatureHeader = "Stripe-Signature"

// StripeAdapter implements pay.Provider with payment intents
type StripeAdapter struct {
	config *StripeConfig
	client *client.API
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter with its own API backend,
// so tests can point it at a local server without touching package globals.
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: config.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Sugar(),
	}
	if config.BackendURL != "" {
		backendConfig.URL = stripe.String(strings.TrimRight(config.BackendURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	sc := &client.API{}
	sc.Init(config.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &StripeAdapter{
		config: config,
		client: sc,
		logger: logger.With(zap.String("provider", pay.ProviderStripe)),
	}, nil
}

// Name returns the provider name
func (a *StripeAdapter) Name() string {
	return pay.ProviderStripe
}

// CreateIntent creates a payment intent for the order total
func (a *StripeAdapter) CreateIntent(ctx context.Context, req pay.IntentRequest) (*pay.Intent, error) {
	amount, err := valueobject.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String("Order #" + req.OrderNumber),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("order_number", req.OrderNumber)
	params.SetIdempotencyKey("intent-" + req.OrderID.String())

	pi, err := a.client.PaymentIntents.New(params)
	if err != nil {
		a.logger.Error("Failed to create payment intent",
			zap.String("order_id", req.OrderID.String()),
			zap.Error(err))
		return nil, stripeError("create_intent", err)
	}

	a.logger.Info("Created payment intent",
		zap.String("order_id", req.OrderID.String()),
		zap.String("payment_intent_id", pi.ID))

	return &pay.Intent{ProviderRef: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Capture reports whether the intent has succeeded. Intents capture
// automatically, so there is nothing to execute.
func (a *StripeAdapter) Capture(ctx context.Context, providerRef, _ string) (*pay.CaptureResult, error) {
	pi, err := a.getIntent(ctx, providerRef)
	if err != nil {
		return nil, err
	}
	result := &pay.CaptureResult{
		ProviderRef: pi.ID,
		Approved:    pi.Status == stripe.PaymentIntentStatusSucceeded,
		State:       string(pi.Status),
	}
	if pi.LatestCharge != nil {
		result.CaptureRef = pi.LatestCharge.ID
	}
	if pi.AmountReceived > 0 {
		amount := valueobject.FromMinorUnits(pi.AmountReceived)
		result.Amount = &amount
	}
	return result, nil
}

// Refund refunds the captured charge, or the intent when the charge id is unknown
func (a *StripeAdapter) Refund(ctx context.Context, req pay.RefundRequest) (*pay.RefundResult, error) {
	amount, err := valueobject.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	params := &stripe.RefundParams{Amount: stripe.Int64(amount)}
	if strings.HasPrefix(req.CaptureRef, "ch_") {
		params.Charge = stripe.String(req.CaptureRef)
	} else {
		params.PaymentIntent = stripe.String(req.ProviderRef)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.SetIdempotencyKey("refund-" + req.OrderID.String())

	r, err := a.client.Refunds.New(params)
	if err != nil {
		a.logger.Error("Failed to refund payment",
			zap.String("order_id", req.OrderID.String()),
			zap.Error(err))
		return nil, stripeError("refund", err)
	}

	switch r.Status {
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return nil, &pay.ProviderError{
			Provider: pay.ProviderStripe,
			Op:       "refund",
			Code:     string(r.Status),
			Message:  "refund " + r.ID + " was " + string(r.Status),
		}
	}

	a.logger.Info("Refunded payment",
		zap.String("order_id", req.OrderID.String()),
		zap.String("refund_id", r.ID))

	return &pay.RefundResult{RefundID: r.ID, Status: string(r.Status)}, nil
}

// GetStatus retrieves the payment intent
func (a *StripeAdapter) GetStatus(ctx context.Context, providerRef string) (*pay.StatusResult, error) {
	pi, err := a.getIntent(ctx, providerRef)
	if err != nil {
		return nil, err
	}
	return &pay.StatusResult{
		Provider:  pay.ProviderStripe,
		Status:    string(pi.Status),
		Amount:    valueobject.FromMinorUnits(pi.Amount),
		Currency:  string(pi.Currency),
		Completed: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func (a *StripeAdapter) getIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := a.client.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, stripeError("get_intent", err)
	}
	return pi, nil
}

// VerifiesWebhooksLocally reports that signatures are checked with the
// shared secret, without calling Stripe
func (a *StripeAdapter) VerifiesWebhooksLocally() bool {
	return true
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event
func (a *StripeAdapter) ParseWebhook(_ context.Context, payload []byte, headers http.Header) (*pay.NormalizedEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get(stripeSignatureHeader), a.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, pay.ErrVerification(pay.ProviderStripe, err)
	}
	if event.Data == nil {
		return nil, shared.NewValidationError("data", "Event has no data object")
	}

	normalized := &pay.NormalizedEvent{
		EventID:  event.ID,
		Provider: pay.ProviderStripe,
		RawType:  string(event.Type),
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, shared.NewValidationError("data.object", "Malformed payment intent")
		}
		normalized.ProviderRef = pi.ID
		normalized.OrderID = metadataOrderID(pi.Metadata)
		if event.Type == stripe.EventTypePaymentIntentSucceeded {
			normalized.Type = pay.EventCaptured
			if pi.LatestCharge != nil {
				normalized.CaptureRef = pi.LatestCharge.ID
			}
			received := pi.AmountReceived
			if received == 0 {
				received = pi.Amount
			}
			amount := valueobject.FromMinorUnits(received)
			normalized.Amount = &amount
		} else {
			normalized.Type = pay.EventFailed
		}

	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, shared.NewValidationError("data.object", "Malformed charge")
		}
		if !ch.Refunded {
			a.logger.Info("Ignoring partial refund", zap.String("charge_id", ch.ID))
			return nil, nil
		}
		normalized.Type = pay.EventRefunded
		normalized.CaptureRef = ch.ID
		normalized.OrderID = metadataOrderID(ch.Metadata)
		if ch.PaymentIntent != nil {
			normalized.ProviderRef = ch.PaymentIntent.ID
		}
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
			normalized.RefundRef = ch.Refunds.Data[0].ID
		}
		amount := valueobject.FromMinorUnits(ch.AmountRefunded)
		normalized.Amount = &amount

	default:
		a.logger.Debug("Unhandled Stripe event", zap.String("event_type", string(event.Type)))
		return nil, nil
	}

	return normalized, nil
}

func metadataOrderID(metadata map[string]string) *uuid.UUID {
	id, err := uuid.Parse(metadata["order_id"])
	if err != nil {
		return nil
	}
	return &id
}

// stripeError converts a stripe-go error into a ProviderError. Errors without
// an HTTP status are transport failures and therefore retryable.
func stripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &pay.ProviderError{
			Provider:   pay.ProviderStripe,
			Op:         op,
			StatusCode: se.HTTPStatusCode,
			Code:       string(se.Code),
			Message:    se.Msg,
			Retryable:  se.HTTPStatusCode == 0 || pay.IsRetryableStatus(se.HTTPStatusCode),
			Err:        err,
		}
	}
	return &pay.ProviderError{Provider: pay.ProviderStripe, Op: op, Retryable: true, Err: err}
}

var _ pay.Provider = (*StripeAdapter)(nil)
