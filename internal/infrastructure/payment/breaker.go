package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	pay "github.com/storefront/backend/internal/domain/payment"
)

// BreakerConfig controls when a provider circuit opens
type BreakerConfig struct {
	// MaxFailures is the number of consecutive unavailable errors that opens the circuit
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial call
	Timeout time.Duration
}

// BreakerProvider guards a provider with a circuit breaker. Only retryable
// failures count against the circuit; declines and bad signatures mean the
// provider is answering.
type BreakerProvider struct {
	next pay.Provider
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerProvider wraps next
func NewBreakerProvider(next pay.Provider, cfg BreakerConfig, logger *zap.Logger) *BreakerProvider {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !pay.IsUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment provider circuit changed state",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerProvider{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State exposes the circuit state for health reporting
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}

// Name returns the wrapped provider's name
func (b *BreakerProvider) Name() string {
	return b.next.Name()
}

// CreateIntent calls the provider through the breaker
func (b *BreakerProvider) CreateIntent(ctx context.Context, req pay.IntentRequest) (*pay.Intent, error) {
	return guarded(b, "create_intent", func() (*pay.Intent, error) {
		return b.next.CreateIntent(ctx, req)
	})
}

// Capture calls the provider through the breaker
func (b *BreakerProvider) Capture(ctx context.Context, providerRef, payerID string) (*pay.CaptureResult, error) {
	return guarded(b, "capture", func() (*pay.CaptureResult, error) {
		return b.next.Capture(ctx, providerRef, payerID)
	})
}

// Refund calls the provider through the breaker
func (b *BreakerProvider) Refund(ctx context.Context, req pay.RefundRequest) (*pay.RefundResult, error) {
	return guarded(b, "refund", func() (*pay.RefundResult, error) {
		return b.next.Refund(ctx, req)
	})
}

// GetStatus calls the provider through the breaker
func (b *BreakerProvider) GetStatus(ctx context.Context, providerRef string) (*pay.StatusResult, error) {
	return guarded(b, "get_status", func() (*pay.StatusResult, error) {
		return b.next.GetStatus(ctx, providerRef)
	})
}

// localVerifier is implemented by adapters whose webhook verification needs
// no call to the provider
type localVerifier interface {
	VerifiesWebhooksLocally() bool
}

// ParseWebhook bypasses the breaker for locally verified webhooks, so an
// outage of the provider API never turns a bad signature into a retry.
// Otherwise the verification call goes through the breaker.
func (b *BreakerProvider) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*pay.NormalizedEvent, error) {
	if lv, ok := b.next.(localVerifier); ok && lv.VerifiesWebhooksLocally() {
		return b.next.ParseWebhook(ctx, payload, headers)
	}
	return guarded(b, "parse_webhook", func() (*pay.NormalizedEvent, error) {
		return b.next.ParseWebhook(ctx, payload, headers)
	})
}

func guarded[T any](b *BreakerProvider, op string, fn func() (*T, error)) (*T, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &pay.ProviderError{
			Provider:  b.next.Name(),
			Op:        op,
			Message:   "circuit breaker open",
			Retryable: true,
			Err:       err,
		}
	}
	v, _ := res.(*T)
	return v, err
}

var _ pay.Provider = (*BreakerProvider)(nil)
