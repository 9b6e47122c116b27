package order

import "github.com/storefront/backend/internal/domain/shared"

// PaymentStatus is the payment axis of an order
type PaymentStatus string

const (
	PaymentStatusAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentStatusNotPaid         PaymentStatus = "not_paid"
	PaymentStatusPaid            PaymentStatus = "paid"
	PaymentStatusRefunded        PaymentStatus = "refunded"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusAwaitingPayment, PaymentStatusNotPaid, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsFinal reports whether funds have moved; such orders are never deleted
// and never leave this state except paid -> refunded.
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusRefunded
}

// FulfillmentStatus is the shipping axis of an order, independent of payment
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentShipped   FulfillmentStatus = "shipped"
	FulfillmentDelivered FulfillmentStatus = "delivered"
)

// IsValid checks if the status is a valid FulfillmentStatus
func (s FulfillmentStatus) IsValid() bool {
	switch s {
	case FulfillmentPending, FulfillmentShipped, FulfillmentDelivered:
		return true
	}
	return false
}

// ParseFulfillmentStatus validates an admin-supplied status
func ParseFulfillmentStatus(s string) (FulfillmentStatus, error) {
	status := FulfillmentStatus(s)
	if !status.IsValid() {
		return "", shared.NewValidationError("status", "Status must be one of pending, shipped, delivered")
	}
	return status, nil
}

// PaymentMethod selects the payment provider
type PaymentMethod string

const (
	PaymentMethodStripe         PaymentMethod = "stripe"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodCashOnDelivery PaymentMethod = "cod"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodStripe, PaymentMethodPayPal, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

// IsOnline reports whether an external provider handles the payment
func (m PaymentMethod) IsOnline() bool {
	return m == PaymentMethodStripe || m == PaymentMethodPayPal
}

// ParsePaymentMethod validates a checkout payment method
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.IsValid() {
		return "", shared.NewValidationError("payment_method", "Payment method must be one of stripe, paypal, cod")
	}
	return m, nil
}

// InitialPaymentStatus is awaiting_payment for online methods, not_paid for cash
func (m PaymentMethod) InitialPaymentStatus() PaymentStatus {
	if m.IsOnline() {
		return PaymentStatusAwaitingPayment
	}
	return PaymentStatusNotPaid
}
