package payment

import (
	"errors"
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
)

// ProviderError is an error reported by a provider API. Retryable errors
// match shared.ErrProviderUnavailable through errors.Is.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, msg)
}

// Unwrap exposes the cause and, for retryable failures, the unavailable sentinel
func (e *ProviderError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Retryable {
		errs = append(errs, shared.ErrProviderUnavailable)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsRetryableStatus reports whether an HTTP status means the provider is
// temporarily unable to serve the request
func IsRetryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// IsUnavailable reports whether err should be retried later
func IsUnavailable(err error) bool {
	return errors.Is(err, shared.ErrProviderUnavailable)
}

// ErrVerification wraps a signature failure with its cause
func ErrVerification(provider string, cause error) error {
	return fmt.Errorf("%s webhook: %w: %v", provider, shared.ErrWebhookVerificationFailed, cause)
}
