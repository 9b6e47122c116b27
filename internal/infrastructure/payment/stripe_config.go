package payment

import (
	"errors"
	"strings"
	"time"
)

// Stripe configuration errors
var (
	ErrStripeMissingSecretKey     = errors.New("stripe: secret key is required")
	ErrStripeInvalidSecretKey     = errors.New("stripe: secret key must start with sk_ or rk_")
	ErrStripeMissingWebhookSecret = errors.New("stripe: webhook secret is required")
)

// StripeConfig holds configuration for the Stripe adapter
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// WebhookSecret verifies the Stripe-Signature header (whsec_xxx)
	WebhookSecret string

	// BackendURL overrides https://api.stripe.com, used by stripe-mock and tests
	BackendURL string

	// Timeout bounds each API call
	Timeout time.Duration
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return ErrStripeMissingSecretKey
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return ErrStripeInvalidSecretKey
	}
	if c.WebhookSecret == "" {
		return ErrStripeMissingWebhookSecret
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultProviderTimeout
	}
	return nil
}
