package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func testOrder(t *testing.T) *order.Order {
	t.Helper()
	addr, err := valueobject.NewDeliveryAddress("Jeddah", "Tahlia St", "12")
	require.NoError(t, err)
	o, err := order.NewOrder("ORD-20260101-EVT001", uuid.New(), order.PaymentMethodStripe, addr, "", []order.ItemDraft{
		{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("15.00")},
	})
	require.NoError(t, err)
	return o
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	created := &testHandler{}
	paid := &testHandler{}
	all := &testHandler{}

	bus.Subscribe(created, order.EventTypeOrderCreated)
	bus.Subscribe(paid, order.EventTypeOrderPaid)
	bus.Subscribe(all)

	o := testOrder(t)
	require.NoError(t, bus.Publish(context.Background(), order.NewOrderCreatedEvent(o)))

	assert.Equal(t, 1, created.count())
	assert.Equal(t, 0, paid.count())
	assert.Equal(t, 1, all.count())
}

func TestInMemoryEventBus_UsesHandlerEventTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &testHandler{eventTypes: []string{order.EventTypeOrderRefunded}}
	bus.Subscribe(h)

	o := testOrder(t)
	require.NoError(t, bus.Publish(context.Background(), order.NewOrderCreatedEvent(o), order.NewOrderRefundedEvent(o)))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_FailuresDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &testHandler{err: errors.New("broker down")}
	panicking := &testHandler{panicWith: "boom"}
	healthy := &testHandler{}

	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), order.NewOrderCreatedEvent(testOrder(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, err.Error(), "handler panicked")
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_Stop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, bus.Stop(ctx))
	assert.ErrorIs(t, bus.Publish(ctx, order.NewOrderCreatedEvent(testOrder(t))), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, order.NewOrderCreatedEvent(testOrder(t))))
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	r := NewHandlerRegistry()
	h := &testHandler{}
	other := &testHandler{}
	r.Register(h, order.EventTypeOrderPaid, order.EventTypeOrderRefunded)
	r.Register(other)
	r.Register(h)

	assert.Len(t, r.GetHandlers(order.EventTypeOrderPaid), 3)

	r.Unregister(h)
	handlers := r.GetHandlers(order.EventTypeOrderPaid)
	require.Len(t, handlers, 1)
	assert.Same(t, other, handlers[0])
}
