package payment

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	paypalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	paypalLiveBaseURL    = "https://api-m.paypal.com"

	defaultProviderTimeout = 30 * time.Second
)

// PayPal configuration errors
var (
	ErrPayPalMissingClientID  = errors.New("paypal: client id is required")
	ErrPayPalMissingSecret    = errors.New("paypal: secret is required")
	ErrPayPalInvalidMode      = errors.New("paypal: mode must be sandbox or live")
	ErrPayPalMissingReturnURL = errors.New("paypal: return base url is required")
)

// PayPalConfig holds configuration for the PayPal REST adapter
type PayPalConfig struct {
	ClientID string
	Secret   string

	// Mode is "sandbox" or "live"
	Mode string

	// WebhookID identifies the webhook registration used for signature checks
	WebhookID string

	// BaseURL overrides the mode's API host, used by tests
	BaseURL string

	// ReturnBaseURL is the public URL of this service; payers are sent back
	// to its /api/v1/payment/paypal/{success,cancel} endpoints
	ReturnBaseURL string

	Timeout time.Duration
}

// Validate validates the PayPal configuration
func (c *PayPalConfig) Validate() error {
	if c.ClientID == "" {
		return ErrPayPalMissingClientID
	}
	if c.Secret == "" {
		return ErrPayPalMissingSecret
	}
	switch c.Mode {
	case "":
		c.Mode = "sandbox"
	case "sandbox", "live":
	default:
		return ErrPayPalInvalidMode
	}
	if c.ReturnBaseURL == "" {
		return ErrPayPalMissingReturnURL
	}
	if _, err := url.Parse(c.ReturnBaseURL); err != nil {
		return ErrPayPalMissingReturnURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultProviderTimeout
	}
	return nil
}

// APIBaseURL returns the REST host for the configured mode
func (c *PayPalConfig) APIBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.Mode == "live" {
		return paypalLiveBaseURL
	}
	return paypalSandboxBaseURL
}

// ReturnURL is where PayPal sends the payer after approval
func (c *PayPalConfig) ReturnURL() string {
	return strings.TrimRight(c.ReturnBaseURL, "/") + "/api/v1/payment/paypal/success"
}

// CancelURL is where PayPal sends the payer after cancelling
func (c *PayPalConfig) CancelURL(orderID string) string {
	return strings.TrimRight(c.ReturnBaseURL, "/") + "/api/v1/payment/paypal/cancel?order_id=" + url.QueryEscape(orderID)
}
