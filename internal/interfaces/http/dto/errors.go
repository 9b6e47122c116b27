package dto

import (
	"net/http"
	"strings"
)

// Error codes carried in the response envelope. Domain codes are exposed
// with the ERR_ prefix, so NOT_FOUND becomes ERR_NOT_FOUND.
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidInput is the code of shared.ErrInvalidInput
	ErrCodeInvalidInput      = "ERR_INVALID_INPUT"
	ErrCodeRequestTooLarge   = "ERR_REQUEST_TOO_LARGE"
	ErrCodeUnauthorized      = "ERR_UNAUTHORIZED"
	ErrCodeForbidden         = "ERR_FORBIDDEN"
	ErrCodeTokenExpired      = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid      = "ERR_TOKEN_INVALID"
	ErrCodeNotFound          = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists     = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrency       = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	ErrCodeEmptyCart         = "ERR_EMPTY_CART"
	ErrCodeNotPaid           = "ERR_NOT_PAID"
	ErrCodePaymentInit       = "ERR_PAYMENT_INIT_FAILED"
	ErrCodePaymentDeclined   = "ERR_PAYMENT_DECLINED"
	ErrCodeProviderDown      = "ERR_PROVIDER_UNAVAILABLE"
	ErrCodeWebhookInvalid    = "ERR_WEBHOOK_VERIFICATION_FAILED"
	ErrCodeAmountMismatch    = "ERR_AMOUNT_MISMATCH"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Business rule
// and validation failures are 422; malformed requests are 400.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeBadRequest:        http.StatusBadRequest,
	ErrCodeValidation:        http.StatusUnprocessableEntity,
	ErrCodeInvalidInput:      http.StatusUnprocessableEntity,
	ErrCodeRequestTooLarge:   http.StatusRequestEntityTooLarge,
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeTokenExpired:      http.StatusUnauthorized,
	ErrCodeTokenInvalid:      http.StatusUnauthorized,
	ErrCodeForbidden:         http.StatusForbidden,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeAlreadyExists:     http.StatusConflict,
	ErrCodeConcurrency:       http.StatusConflict,
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodeEmptyCart:         http.StatusUnprocessableEntity,
	ErrCodeNotPaid:           http.StatusUnprocessableEntity,
	ErrCodePaymentInit:       http.StatusUnprocessableEntity,
	ErrCodePaymentDeclined:   http.StatusUnprocessableEntity,
	ErrCodeAmountMismatch:    http.StatusUnprocessableEntity,
	ErrCodeProviderDown:      http.StatusServiceUnavailable,
	ErrCodeWebhookInvalid:    http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code, 500 when
// the code is unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode prefixes a domain error code with ERR_
func NormalizeErrorCode(code string) string {
	if code == "" {
		return ErrCodeInternal
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
