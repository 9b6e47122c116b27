package order

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// MaxNotesLength bounds the free-text notes on an order
const MaxNotesLength = 1000

// Item is a purchased line. Price is locked at checkout; items are immutable.
type Item struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Price     decimal.Decimal
	LineTotal decimal.Decimal
	CreatedAt time.Time
}

// ItemDraft is the priced input for one order item
type ItemDraft struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order is the aggregate tying a purchase to its payment state.
// TotalAmount is computed once in NewOrder and never recomputed.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber     string
	UserID          uuid.UUID
	Status          FulfillmentStatus
	PaymentStatus   PaymentStatus
	PaymentMethod   PaymentMethod
	PaymentIntentID string
	PayPalPaymentID string
	CaptureRef      string
	RefundID        string
	TotalAmount     decimal.Decimal
	DeliveryAddress valueobject.DeliveryAddress
	Notes           string
	Items           []Item
}

// NewOrder creates an order from priced lines
func NewOrder(
	orderNumber string,
	userID uuid.UUID,
	method PaymentMethod,
	address valueobject.DeliveryAddress,
	notes string,
	drafts []ItemDraft,
) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewValidationError("order_number", "Order number cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("payment_method", "Invalid payment method")
	}
	if address.IsEmpty() {
		return nil, shared.NewValidationError("delivery_address", "Delivery address is required")
	}
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, shared.NewValidationError("notes", "Notes cannot exceed 1000 characters")
	}
	if len(drafts) == 0 {
		return nil, shared.ErrEmptyCart
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		UserID:            userID,
		Status:            FulfillmentPending,
		PaymentStatus:     method.InitialPaymentStatus(),
		PaymentMethod:     method,
		DeliveryAddress:   address,
		Notes:             notes,
		TotalAmount:       decimal.Zero,
	}

	for _, d := range drafts {
		if d.Quantity < 1 {
			return nil, shared.NewValidationError("quantity", "Quantity must be at least 1")
		}
		if d.UnitPrice.IsNegative() {
			return nil, shared.NewValidationError("price", "Unit price cannot be negative")
		}
		lineTotal := valueobject.LineTotal(d.UnitPrice, d.Quantity)
		o.Items = append(o.Items, Item{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			Price:     d.UnitPrice,
			LineTotal: lineTotal,
			CreatedAt: o.CreatedAt,
		})
		o.TotalAmount = o.TotalAmount.Add(lineTotal)
	}

	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return o, nil
}

// BelongsTo reports whether the user owns the order
func (o *Order) BelongsTo(userID uuid.UUID) bool {
	return o.UserID == userID
}

// CanBeViewedBy allows the owner and admins
func (o *Order) CanBeViewedBy(p shared.Principal) bool {
	return p.IsAdmin() || o.BelongsTo(p.UserID)
}

// ItemCount returns the total number of units
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// CorrelationRef returns the provider id the order is tracked under
func (o *Order) CorrelationRef() string {
	switch o.PaymentMethod {
	case PaymentMethodStripe:
		return o.PaymentIntentID
	case PaymentMethodPayPal:
		return o.PayPalPaymentID
	}
	return ""
}

// AttachPaymentRef stores the provider correlation id returned at intent creation
func (o *Order) AttachPaymentRef(ref string) error {
	if ref == "" {
		return shared.NewValidationError("provider_ref", "Provider reference cannot be empty")
	}
	switch o.PaymentMethod {
	case PaymentMethodStripe:
		o.PaymentIntentID = ref
	case PaymentMethodPayPal:
		o.PayPalPaymentID = ref
	default:
		return shared.ErrInvalidState.WithMessage("Cash on delivery orders have no provider reference")
	}
	o.Touch()
	return nil
}

// MarkPaid moves awaiting_payment -> paid. It reports false without error when
// the order is already paid or refunded.
func (o *Order) MarkPaid(captureRef string) (bool, error) {
	if o.PaymentStatus.IsFinal() {
		return false, nil
	}
	if o.PaymentStatus != PaymentStatusAwaitingPayment {
		return false, shared.ErrInvalidState.WithMessage("Only orders awaiting payment can be marked paid")
	}
	o.PaymentStatus = PaymentStatusPaid
	if captureRef != "" {
		o.CaptureRef = captureRef
	}
	o.Touch()
	o.AddDomainEvent(NewOrderPaidEvent(o))
	return true, nil
}

// Discard records the decision to delete an unpaid online order after the
// provider failed, denied or cancelled it. Reports false for final orders.
func (o *Order) Discard(reason string) (bool, error) {
	if o.PaymentStatus.IsFinal() {
		return false, nil
	}
	if o.PaymentStatus != PaymentStatusAwaitingPayment {
		return false, shared.ErrInvalidState.WithMessage("Only orders awaiting payment can be discarded")
	}
	o.AddDomainEvent(NewOrderDiscardedEvent(o, reason))
	return true, nil
}

// MarkRefunded moves paid -> refunded. Reports false when already refunded.
func (o *Order) MarkRefunded(refundRef string) (bool, error) {
	switch o.PaymentStatus {
	case PaymentStatusRefunded:
		return false, nil
	case PaymentStatusPaid:
	default:
		return false, shared.ErrNotPaid
	}
	o.PaymentStatus = PaymentStatusRefunded
	if refundRef != "" {
		o.RefundID = refundRef
	}
	o.Touch()
	o.AddDomainEvent(NewOrderRefundedEvent(o))
	return true, nil
}

// UpdateStatus changes the fulfillment status
func (o *Order) UpdateStatus(status FulfillmentStatus) error {
	if !status.IsValid() {
		return shared.NewValidationError("status", "Invalid order status")
	}
	if o.Status == status {
		return nil
	}
	old := o.Status
	o.Status = status
	o.Touch()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, old))
	return nil
}

// CanDelete reports whether an admin may delete the order
func (o *Order) CanDelete() error {
	if o.PaymentStatus.IsFinal() {
		return shared.ErrInvalidState.WithMessage("Paid or refunded orders cannot be deleted")
	}
	return nil
}
