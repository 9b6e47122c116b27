package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated       = "OrderCreated"
	EventTypeOrderPaid          = "OrderPaid"
	EventTypeOrderDiscarded     = "OrderDiscarded"
	EventTypeOrderRefunded      = "OrderRefunded"
	EventTypeOrderStatusChanged = "OrderStatusChanged"
)

// ItemInfo represents item information for events
type ItemInfo struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func itemInfos(o *Order) []ItemInfo {
	infos := make([]ItemInfo, len(o.Items))
	for i, it := range o.Items {
		infos[i] = ItemInfo{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	return infos
}

// OrderCreatedEvent is raised when checkout persists an order
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        uuid.UUID       `json:"user_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []ItemInfo      `json:"items"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		PaymentMethod:   o.PaymentMethod,
		TotalAmount:     o.TotalAmount,
		Items:           itemInfos(o),
	}
}

// OrderPaidEvent is raised when the provider confirms capture
type OrderPaidEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CaptureRef    string          `json:"capture_ref,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewOrderPaidEvent creates a new OrderPaidEvent
func NewOrderPaidEvent(o *Order) *OrderPaidEvent {
	return &OrderPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPaid, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		PaymentMethod:   o.PaymentMethod,
		CaptureRef:      o.CaptureRef,
		TotalAmount:     o.TotalAmount,
	}
}

// OrderDiscardedEvent is raised when an unpaid order is deleted and its stock released
type OrderDiscardedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	Reason      string     `json:"reason"`
	Items       []ItemInfo `json:"items"`
}

// NewOrderDiscardedEvent creates a new OrderDiscardedEvent
func NewOrderDiscardedEvent(o *Order, reason string) *OrderDiscardedEvent {
	return &OrderDiscardedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDiscarded, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		Reason:          reason,
		Items:           itemInfos(o),
	}
}

// OrderRefundedEvent is raised when a paid order is refunded
type OrderRefundedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	RefundID    string          `json:"refund_id,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewOrderRefundedEvent creates a new OrderRefundedEvent
func NewOrderRefundedEvent(o *Order) *OrderRefundedEvent {
	return &OrderRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderRefunded, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		RefundID:        o.RefundID,
		TotalAmount:     o.TotalAmount,
	}
}

// OrderStatusChangedEvent is raised when an admin changes fulfillment status
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OldStatus   FulfillmentStatus `json:"old_status"`
	NewStatus   FulfillmentStatus `json:"new_status"`
}

// NewOrderStatusChangedEvent creates a new OrderStatusChangedEvent
func NewOrderStatusChangedEvent(o *Order, old FulfillmentStatus) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		OldStatus:       old,
		NewStatus:       o.Status,
	}
}
