package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending input field or product, when there is one
	Field string `json:"field,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Field)
	}
	return e.Message
}

// Is matches any DomainError carrying the same code, so errors.Is works
// against the sentinels below even after WithMessage/WithField.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error with a different message
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Code: e.Code, Message: message, Field: e.Field}
}

// WithField returns a copy of the error bound to a field or product name
func (e *DomainError) WithField(field string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Field: field}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
)

// Checkout and payment errors
var (
	ErrEmptyCart                 = NewDomainError("EMPTY_CART", "Cart is empty")
	ErrNotPaid                   = NewDomainError("NOT_PAID", "Order has not been paid")
	ErrPaymentInitFailed         = NewDomainError("PAYMENT_INIT_FAILED", "Payment could not be initialized")
	ErrProviderUnavailable       = NewDomainError("PROVIDER_UNAVAILABLE", "Payment provider is temporarily unavailable")
	ErrWebhookVerificationFailed = NewDomainError("WEBHOOK_VERIFICATION_FAILED", "Webhook signature verification failed")
	ErrAmountMismatch            = NewDomainError("AMOUNT_MISMATCH", "Payment amount does not match order total")
	ErrPaymentDeclined           = NewDomainError("PAYMENT_DECLINED", "Payment provider declined the request")
)

// NewInsufficientStockError reports a stock shortfall for a named product
func NewInsufficientStockError(productName string) *DomainError {
	return ErrInsufficientStock.
		WithMessage(fmt.Sprintf("Insufficient stock for %s", productName)).
		WithField(productName)
}

// NewValidationError reports invalid input on a specific field
func NewValidationError(field, message string) *DomainError {
	return ErrInvalidInput.WithMessage(message).WithField(field)
}
