package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	apporder "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// DefaultIdempotencyTTL is how long processed webhook event ids are remembered
const DefaultIdempotencyTTL = 72 * time.Hour

// WebhookStatus is the acknowledgement outcome of one delivery
type WebhookStatus string

const (
	WebhookApplied   WebhookStatus = "applied"
	WebhookDuplicate WebhookStatus = "duplicate"
	WebhookIgnored   WebhookStatus = "ignored"
)

// Outcome labels for metrics that are not acknowledgements
const (
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// WebhookResult describes what a webhook or redirect did
type WebhookResult struct {
	Status  WebhookStatus
	EventID string
	Type    payment.EventType
	OrderID uuid.UUID
}

// OrderTransitions is the part of the order lifecycle reconciliation drives
type OrderTransitions interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID, captureRef string) (*apporder.TransitionOutcome, error)
	Discard(ctx context.Context, orderID uuid.UUID, reason string) (*apporder.TransitionOutcome, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID, refundRef string) (*apporder.TransitionOutcome, error)
}

// Metrics receives reconciliation outcomes
type Metrics interface {
	RecordWebhook(ctx context.Context, provider, eventType, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordWebhook(context.Context, string, string, string) {}

// ReconciliationConfig configures a ReconciliationService
type ReconciliationConfig struct {
	Providers      *payment.Registry
	Orders         order.Repository
	Transitions    OrderTransitions
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Metrics        Metrics
	Logger         *zap.Logger
}

// ReconciliationService turns verified provider notifications into order
// transitions. The order's payment status guard makes every delivery safe to
// repeat; the idempotency store only short-circuits known event ids.
type ReconciliationService struct {
	providers   *payment.Registry
	orders      order.Repository
	transitions OrderTransitions
	idempotency shared.IdempotencyStore
	ttl         time.Duration
	metrics     Metrics
	logger      *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(cfg ReconciliationConfig) *ReconciliationService {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ReconciliationService{
		providers:   cfg.Providers,
		orders:      cfg.Orders,
		transitions: cfg.Transitions,
		idempotency: cfg.Idempotency,
		ttl:         cfg.IdempotencyTTL,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// HandleWebhook verifies and applies one provider webhook delivery.
// Verification failures return ErrWebhookVerificationFailed without touching
// any state.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, providerName string, payload []byte, headers http.Header) (*WebhookResult, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("provider", providerName))

	event, err := provider.ParseWebhook(ctx, payload, headers)
	if err != nil {
		outcome := outcomeRejected
		if payment.IsUnavailable(err) {
			outcome = outcomeFailed
		}
		log.Warn("webhook rejected", zap.Error(err))
		s.metrics.RecordWebhook(ctx, providerName, "unknown", outcome)
		return nil, err
	}
	if event == nil {
		s.metrics.RecordWebhook(ctx, providerName, "unhandled", string(WebhookIgnored))
		return &WebhookResult{Status: WebhookIgnored}, nil
	}

	log = log.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.RawType))

	result, err := s.applyEvent(ctx, log, event)
	if err != nil {
		s.metrics.RecordWebhook(ctx, providerName, string(event.Type), outcomeFailed)
		return nil, err
	}
	s.metrics.RecordWebhook(ctx, providerName, string(event.Type), string(result.Status))
	return result, nil
}

func (s *ReconciliationService) applyEvent(ctx context.Context, log *zap.Logger, event *payment.NormalizedEvent) (*WebhookResult, error) {
	result := &WebhookResult{EventID: event.EventID, Type: event.Type}
	key := idempotencyKey(event)

	if key != "" && s.idempotency != nil {
		seen, err := s.idempotency.IsProcessed(ctx, key)
		if err != nil {
			log.Warn("idempotency lookup failed, relying on order state", zap.Error(err))
		} else if seen {
			log.Info("duplicate webhook delivery")
			result.Status = WebhookDuplicate
			return result, nil
		}
	}

	o, err := s.resolveOrder(ctx, event)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if event.Type == payment.EventCaptured {
			log.Error("captured payment for unknown order", zap.String("provider_ref", event.ProviderRef))
		} else {
			log.Warn("webhook for unknown order", zap.String("provider_ref", event.ProviderRef))
		}
		result.Status = WebhookIgnored
		s.remember(ctx, log, key)
		return result, nil
	}
	result.OrderID = o.ID
	log = log.With(zap.String("order_id", o.ID.String()))

	if string(o.PaymentMethod) != event.Provider {
		log.Warn("webhook provider does not match order payment method",
			zap.String("payment_method", string(o.PaymentMethod)))
		result.Status = WebhookIgnored
		s.remember(ctx, log, key)
		return result, nil
	}

	if event.Amount != nil && !valueobject.RoundMoney(*event.Amount).Equal(o.TotalAmount) {
		log.Error("webhook amount does not match order total",
			zap.String("amount", valueobject.FormatAmount(*event.Amount)),
			zap.String("total_amount", valueobject.FormatAmount(o.TotalAmount)))
		return nil, shared.ErrAmountMismatch.WithMessage(fmt.Sprintf(
			"Amount %s does not match order total %s",
			valueobject.FormatAmount(*event.Amount), valueobject.FormatAmount(o.TotalAmount)))
	}

	var outcome *apporder.TransitionOutcome
	switch event.Type {
	case payment.EventCaptured:
		ref := event.CaptureRef
		if ref == "" {
			ref = event.ProviderRef
		}
		outcome, err = s.transitions.MarkPaid(ctx, o.ID, ref)
	case payment.EventFailed:
		outcome, err = s.transitions.Discard(ctx, o.ID, event.RawType)
	case payment.EventRefunded:
		outcome, err = s.transitions.MarkRefunded(ctx, o.ID, event.RefundRef)
	default:
		result.Status = WebhookIgnored
		return result, nil
	}
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidState):
			// e.g. a capture notification for a cash order
			log.Warn("webhook does not apply to order state", zap.Error(err))
			result.Status = WebhookIgnored
			s.remember(ctx, log, key)
			return result, nil
		case errors.Is(err, shared.ErrNotFound):
			log.Info("order already gone")
			result.Status = WebhookIgnored
			s.remember(ctx, log, key)
			return result, nil
		}
		// NotPaid on a refund that beat its capture: the provider retries later
		log.Warn("webhook transition failed", zap.Error(err))
		return nil, err
	}

	if outcome.Applied {
		result.Status = WebhookApplied
		log.Info("webhook applied")
	} else {
		result.Status = WebhookDuplicate
		log.Info("webhook already reflected in order state")
	}
	s.remember(ctx, log, key)
	return result, nil
}

func (s *ReconciliationService) resolveOrder(ctx context.Context, event *payment.NormalizedEvent) (*order.Order, error) {
	if event.OrderID != nil {
		o, err := s.orders.FindByID(ctx, *event.OrderID)
		if err == nil || !errors.Is(err, shared.ErrNotFound) || event.ProviderRef == "" {
			return o, err
		}
	}
	return s.orders.FindByPaymentRef(ctx, order.PaymentMethod(event.Provider), event.ProviderRef)
}

func (s *ReconciliationService) remember(ctx context.Context, log *zap.Logger, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, key, s.ttl); err != nil {
		log.Warn("failed to record processed webhook", zap.Error(err))
	}
}

func idempotencyKey(event *payment.NormalizedEvent) string {
	if event.EventID == "" {
		return ""
	}
	return "webhook:" + event.Provider + ":" + event.EventID
}

// CompleteRedirect finalizes a PayPal payment after the payer approved it and
// was sent back to the return URL.
func (s *ReconciliationService) CompleteRedirect(ctx context.Context, paymentID, payerID string) (*WebhookResult, error) {
	if paymentID == "" || payerID == "" {
		return nil, shared.NewValidationError("paymentId", "paymentId and PayerID are required")
	}
	provider, err := s.providers.Get(payment.ProviderPayPal)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.FindByPaymentRef(ctx, order.PaymentMethodPayPal, paymentID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(
		zap.String("provider", payment.ProviderPayPal),
		zap.String("order_id", o.ID.String()))
	result := &WebhookResult{Type: payment.EventCaptured, OrderID: o.ID}

	if o.PaymentStatus.IsFinal() {
		result.Status = WebhookDuplicate
		return result, nil
	}
	if o.PaymentStatus != order.PaymentStatusAwaitingPayment {
		return nil, shared.ErrInvalidState.WithMessage("Order is not awaiting payment")
	}

	capture, err := provider.Capture(ctx, paymentID, payerID)
	if err != nil {
		if payment.IsUnavailable(err) {
			log.Warn("paypal capture unavailable", zap.Error(err))
			s.metrics.RecordWebhook(ctx, payment.ProviderPayPal, "redirect", outcomeFailed)
			return nil, err
		}
		log.Warn("paypal capture rejected", zap.Error(err))
		capture = &payment.CaptureResult{ProviderRef: paymentID, State: "failed"}
	}

	var outcome *apporder.TransitionOutcome
	if capture.Approved {
		outcome, err = s.transitions.MarkPaid(ctx, o.ID, capture.CaptureRef)
	} else {
		result.Type = payment.EventFailed
		outcome, err = s.transitions.Discard(ctx, o.ID, "paypal_"+capture.State)
	}
	if err != nil {
		return nil, err
	}
	if outcome.Applied {
		result.Status = WebhookApplied
	} else {
		result.Status = WebhookDuplicate
	}
	log.Info("paypal redirect completed",
		zap.String("state", capture.State),
		zap.String("status", string(result.Status)))
	s.metrics.RecordWebhook(ctx, payment.ProviderPayPal, "redirect", string(result.Status))

	if !capture.Approved && result.Status == WebhookApplied {
		return result, shared.ErrPaymentDeclined
	}
	return result, nil
}

// CancelRedirect discards the PayPal order the payer cancelled at the
// provider, unless the provider already reports the payment approved. Only
// the order's owner or an admin may cancel.
func (s *ReconciliationService) CancelRedirect(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*WebhookResult, error) {
	if principal.UserID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeViewedBy(principal) {
		return nil, shared.ErrForbidden
	}
	result := &WebhookResult{Type: payment.EventFailed, OrderID: o.ID}
	if o.PaymentMethod != order.PaymentMethodPayPal || o.PaymentStatus != order.PaymentStatusAwaitingPayment {
		result.Status = WebhookIgnored
		return result, nil
	}

	if ref := o.CorrelationRef(); ref != "" {
		provider, err := s.providers.Get(payment.ProviderPayPal)
		if err != nil {
			return nil, err
		}
		status, err := provider.GetStatus(ctx, ref)
		if err != nil {
			return nil, err
		}
		if status.Completed || status.Status == "approved" {
			s.logger.Info("cancel ignored, paypal payment already approved",
				zap.String("order_id", o.ID.String()))
			result.Status = WebhookIgnored
			return result, nil
		}
	}

	outcome, err := s.transitions.Discard(ctx, o.ID, "paypal_cancelled")
	if err != nil {
		return nil, err
	}
	result.Status = WebhookDuplicate
	if outcome.Applied {
		result.Status = WebhookApplied
	}
	s.metrics.RecordWebhook(ctx, payment.ProviderPayPal, "cancel", string(result.Status))
	return result, nil
}
