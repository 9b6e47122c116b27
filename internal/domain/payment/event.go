package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is the provider-agnostic kind of payment notification
type EventType string

const (
	EventCaptured EventType = "captured"
	EventFailed   EventType = "failed"
	EventRefunded EventType = "refunded"
)

// NormalizedEvent is a verified provider notification reduced to what the
// order core needs.
type NormalizedEvent struct {
	// EventID is the provider's delivery id, used for deduplication
	EventID  string
	Provider string
	Type     EventType
	// RawType is the provider's own event name, kept for logging
	RawType string
	// OrderID comes from metadata we attached at intent creation, when present
	OrderID *uuid.UUID
	// ProviderRef is the intent or payment id the order was correlated under
	ProviderRef string
	CaptureRef  string
	RefundRef   string
	// Amount is the captured or refunded amount when the provider reports one
	Amount *decimal.Decimal
}
