package event

import "github.com/storefront/backend/internal/domain/order"

// RegisterOrderEvents registers the order lifecycle events with the serializer
func RegisterOrderEvents(serializer *EventSerializer) {
	serializer.Register(order.EventTypeOrderCreated, &order.OrderCreatedEvent{})
	serializer.Register(order.EventTypeOrderPaid, &order.OrderPaidEvent{})
	serializer.Register(order.EventTypeOrderDiscarded, &order.OrderDiscardedEvent{})
	serializer.Register(order.EventTypeOrderRefunded, &order.OrderRefundedEvent{})
	serializer.Register(order.EventTypeOrderStatusChanged, &order.OrderStatusChangedEvent{})
}

// OrderEventTypes lists every order event type
func OrderEventTypes() []string {
	return []string{
		order.EventTypeOrderCreated,
		order.EventTypeOrderPaid,
		order.EventTypeOrderDiscarded,
		order.EventTypeOrderRefunded,
		order.EventTypeOrderStatusChanged,
	}
}
