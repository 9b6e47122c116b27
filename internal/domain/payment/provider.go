package payment

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// Provider names, matching the order payment method wire names
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// Provider is the narrow adapter around one external payment provider
type Provider interface {
	Name() string

	// CreateIntent registers the payment with the provider
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)

	// Capture finalizes a payment the payer approved (redirect flows)
	Capture(ctx context.Context, providerRef, payerID string) (*CaptureResult, error)

	// Refund returns the captured funds
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)

	// GetStatus asks the provider for the current payment state
	GetStatus(ctx context.Context, providerRef string) (*StatusResult, error)

	// ParseWebhook verifies the payload and normalizes it. Event types the
	// core does not act on return nil, nil.
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*NormalizedEvent, error)
}

// IntentItem is one line sent to providers that itemize payments
type IntentItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// IntentRequest carries what a provider needs to create a payment
type IntentRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Items       []IntentItem
	Locale      shared.Locale
}

// Intent is the provider's answer to CreateIntent
type Intent struct {
	// ProviderRef is the correlation id stored on the order
	ProviderRef  string
	ClientSecret string
	ApprovalURL  string
}

// CaptureResult is the outcome of finalizing a payment
type CaptureResult struct {
	ProviderRef string
	// CaptureRef identifies the captured funds (sale or charge id)
	CaptureRef string
	Approved   bool
	State      string
	Amount     *decimal.Decimal
}

// RefundRequest identifies the payment to refund
type RefundRequest struct {
	OrderID     uuid.UUID
	ProviderRef string
	CaptureRef  string
	Amount      decimal.Decimal
	Currency    string
}

// RefundResult is the outcome of a refund
type RefundResult struct {
	RefundID string
	Status   string
}

// StatusResult is the provider's view of a payment
type StatusResult struct {
	Provider string          `json:"provider"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	// Completed is true when the provider considers funds captured
	Completed bool `json:"completed"`
}

// Registry resolves providers by name
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes providers by Name()
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider or ErrNotFound
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, shared.ErrNotFound.WithMessage("Unknown payment provider").WithField(name)
	}
	return p, nil
}

// Names lists registered providers
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}
