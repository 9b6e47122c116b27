package payment_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	apporder "github.com/storefront/backend/internal/application/order"
	apppayment "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockProvider is a mock implementation of payment.Provider
type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	return &payment.Intent{ProviderRef: m.name + "-" + req.OrderNumber}, nil
}

func (m *MockProvider) Capture(ctx context.Context, ref, payerID string) (*payment.CaptureResult, error) {
	args := m.Called(ctx, ref, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CaptureResult), args.Error(1)
}

func (m *MockProvider) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.RefundResult), args.Error(1)
}

func (m *MockProvider) GetStatus(ctx context.Context, ref string) (*payment.StatusResult, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.StatusResult), args.Error(1)
}

func (m *MockProvider) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*payment.NormalizedEvent, error) {
	args := m.Called(ctx, payload, headers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.NormalizedEvent), args.Error(1)
}

type recordingMetrics struct {
	outcomes []string
}

func (r *recordingMetrics) RecordWebhook(_ context.Context, provider, eventType, outcome string) {
	r.outcomes = append(r.outcomes, provider+"/"+eventType+"/"+outcome)
}

type fixture struct {
	db      *gorm.DB
	orders  *apporder.Service
	svc     *apppayment.ReconciliationService
	stripe  *MockProvider
	paypal  *MockProvider
	metrics *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := persistencetest.NewDB(t)
	f := &fixture{
		db:      db,
		stripe:  &MockProvider{name: payment.ProviderStripe},
		paypal:  &MockProvider{name: payment.ProviderPayPal},
		metrics: &recordingMetrics{},
	}
	registry := payment.NewRegistry(f.stripe, f.paypal)
	orders := persistence.NewGormOrderRepository(db)
	f.orders = apporder.NewService(apporder.ServiceConfig{
		Orders:    orders,
		Scope:     persistence.NewGormTransactionScope(db),
		Providers: registry,
	})
	store := cache.NewMemoryEventStore()
	t.Cleanup(func() { _ = store.Close() })
	f.svc = apppayment.NewReconciliationService(apppayment.ReconciliationConfig{
		Providers:   registry,
		Orders:      orders,
		Transitions: f.orders,
		Idempotency: store,
		Metrics:     f.metrics,
	})
	return f
}

// placeOrder checks out qty units of productZ (5 in stock) with the given method
func (f *fixture) placeOrder(t *testing.T, method string, qty int) (*order.Order, *catalog.Product) {
	t.Helper()
	user := uuid.New()
	p := persistencetest.SeedProduct(t, f.db, "Product Z", "25.00", 5)
	line, err := cart.NewLine(user, p.ID, qty)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormCartRepository(f.db).Save(context.Background(), line))

	res, err := f.orders.CreateOrder(context.Background(), shared.Principal{UserID: user}, apporder.CheckoutInput{
		PaymentMethod: method,
		DeliveryAddress: apporder.DeliveryAddressInput{
			City: "Riyadh", Address: "King Fahd Rd", BuildingNumber: "12",
		},
	})
	require.NoError(t, err)
	return res.Order, p
}

func (f *fixture) paymentStatus(t *testing.T, id uuid.UUID) order.PaymentStatus {
	t.Helper()
	var status string
	require.NoError(t, f.db.Table("orders").Select("payment_status").Where("id = ?", id).Scan(&status).Error)
	return order.PaymentStatus(status)
}

func stripeEvent(id string, typ payment.EventType, o *order.Order) *payment.NormalizedEvent {
	orderID := o.ID
	amount := o.TotalAmount
	return &payment.NormalizedEvent{
		EventID:     id,
		Provider:    payment.ProviderStripe,
		Type:        typ,
		RawType:     "payment_intent." + string(typ),
		OrderID:     &orderID,
		ProviderRef: o.PaymentIntentID,
		Amount:      &amount,
	}
}

func TestHandleWebhook_Captured(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, p := f.placeOrder(t, "stripe", 2)

	ev := stripeEvent("evt_1", payment.EventCaptured, o)
	f.stripe.On("ParseWebhook", ctx, []byte("body"), http.Header{}).Return(ev, nil)

	res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("body"), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, apppayment.WebhookApplied, res.Status)
	assert.Equal(t, o.ID, res.OrderID)
	assert.Equal(t, order.PaymentStatusPaid, f.paymentStatus(t, o.ID))

	// redelivery of the same event id
	res, err = f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("body"), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, apppayment.WebhookDuplicate, res.Status)
	assert.Equal(t, 3, persistencetest.ProductQuantity(t, f.db, p))

	assert.Equal(t, []string{"stripe/captured/applied", "stripe/captured/duplicate"}, f.metrics.outcomes)
}

func TestHandleWebhook_CapturedTwiceWithDifferentEventIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, p := f.placeOrder(t, "stripe", 1)

	f.stripe.On("ParseWebhook", ctx, []byte("a"), mock.Anything).Return(stripeEvent("evt_a", payment.EventCaptured, o), nil)
	f.stripe.On("ParseWebhook", ctx, []byte("b"), mock.Anything).Return(stripeEvent("evt_b", payment.EventCaptured, o), nil)

	_, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("a"), nil)
	require.NoError(t, err)
	res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("b"), nil)
	require.NoError(t, err)

	assert.Equal(t, apppayment.WebhookDuplicate, res.Status)
	assert.Equal(t, order.PaymentStatusPaid, f.paymentStatus(t, o.ID))
	assert.Equal(t, 4, persistencetest.ProductQuantity(t, f.db, p))
}

func TestHandleWebhook_FailedReleasesAndDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, p := f.placeOrder(t, "stripe", 2)
	assert.Equal(t, 3, persistencetest.ProductQuantity(t, f.db, p))

	f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).Return(stripeEvent("evt_fail", payment.EventFailed, o), nil)

	res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
	require.NoError(t, err)
	assert.Equal(t, apppayment.WebhookApplied, res.Status)
	assert.Equal(t, 5, persistencetest.ProductQuantity(t, f.db, p))

	var count int64
	require.NoError(t, f.db.Table("orders").Where("id = ?", o.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleWebhook_FailedAfterCapturedIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, p := f.placeOrder(t, "stripe", 2)

	f.stripe.On("ParseWebhook", ctx, []byte("captured"), mock.Anything).Return(stripeEvent("evt_ok", payment.EventCaptured, o), nil)
	f.stripe.On("ParseWebhook", ctx, []byte("failed"), mock.Anything).Return(stripeEvent("evt_late", payment.EventFailed, o), nil)

	_, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("captured"), nil)
	require.NoError(t, err)
	res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("failed"), nil)
	require.NoError(t, err)

	assert.Equal(t, apppayment.WebhookDuplicate, res.Status)
	assert.Equal(t, order.PaymentStatusPaid, f.paymentStatus(t, o.ID))
	assert.Equal(t, 3, persistencetest.ProductQuantity(t, f.db, p))
}

func TestHandleWebhook_Refunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, p := f.placeOrder(t, "stripe", 1)
	_, err := f.orders.MarkPaid(ctx, o.ID, "ch_1")
	require.NoError(t, err)

	ev := stripeEvent("evt_refund", payment.EventRefunded, o)
	ev.RefundRef = "re_9"
	f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).Return(ev, nil)

	res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
	require.NoError(t, err)
	assert.Equal(t, apppayment.WebhookApplied, res.Status)
	assert.Equal(t, order.PaymentStatusRefunded, f.paymentStatus(t, o.ID))
	assert.Equal(t, 5, persistencetest.ProductQuantity(t, f.db, p))
}

func TestHandleWebhook_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("verification failure changes nothing", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "stripe", 1)
		f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).
			Return(nil, payment.ErrVerification("stripe", assert.AnError))

		_, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
		assert.ErrorIs(t, err, shared.ErrWebhookVerificationFailed)
		assert.Equal(t, order.PaymentStatusAwaitingPayment, f.paymentStatus(t, o.ID))
		assert.Equal(t, []string{"stripe/unknown/rejected"}, f.metrics.outcomes)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "stripe", 1)
		ev := stripeEvent("evt_amt", payment.EventCaptured, o)
		wrong := decimal.RequireFromString("1.00")
		ev.Amount = &wrong
		f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).Return(ev, nil)

		_, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
		assert.ErrorIs(t, err, shared.ErrAmountMismatch)
		assert.Equal(t, order.PaymentStatusAwaitingPayment, f.paymentStatus(t, o.ID))
	})

	t.Run("unhandled event types are ignored", func(t *testing.T) {
		f := newFixture(t)
		f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).Return(nil, nil)

		res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookIgnored, res.Status)
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		f := newFixture(t)
		missing := uuid.New()
		f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).Return(&payment.NormalizedEvent{
			EventID: "evt_x", Provider: payment.ProviderStripe, Type: payment.EventCaptured,
			OrderID: &missing, ProviderRef: "pi_unknown",
		}, nil)

		res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookIgnored, res.Status)
	})

	t.Run("captured for a cash order is ignored", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "cod", 1)
		ev := stripeEvent("evt_cod", payment.EventCaptured, o)
		f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).Return(ev, nil)

		res, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookIgnored, res.Status)
		assert.Equal(t, order.PaymentStatusNotPaid, f.paymentStatus(t, o.ID))
	})

	t.Run("refund before capture is retried by the provider", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "stripe", 1)
		f.stripe.On("ParseWebhook", ctx, mock.Anything, mock.Anything).Return(stripeEvent("evt_early", payment.EventRefunded, o), nil)

		_, err := f.svc.HandleWebhook(ctx, payment.ProviderStripe, []byte("{}"), nil)
		assert.ErrorIs(t, err, shared.ErrNotPaid)
	})

	t.Run("unknown provider", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.HandleWebhook(ctx, "bank", []byte("{}"), nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestCompleteRedirect(t *testing.T) {
	ctx := context.Background()

	t.Run("approved capture marks paid", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "paypal", 1)
		f.paypal.On("Capture", ctx, o.PayPalPaymentID, "PAYER1").Return(&payment.CaptureResult{
			ProviderRef: o.PayPalPaymentID, CaptureRef: "SALE-1", Approved: true, State: "approved",
		}, nil).Once()

		res, err := f.svc.CompleteRedirect(ctx, o.PayPalPaymentID, "PAYER1")
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookApplied, res.Status)
		assert.Equal(t, order.PaymentStatusPaid, f.paymentStatus(t, o.ID))

		// returning to the success URL again does not capture twice
		res, err = f.svc.CompleteRedirect(ctx, o.PayPalPaymentID, "PAYER1")
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookDuplicate, res.Status)
		f.paypal.AssertExpectations(t)
	})

	t.Run("declined capture discards", func(t *testing.T) {
		f := newFixture(t)
		o, p := f.placeOrder(t, "paypal", 2)
		f.paypal.On("Capture", ctx, o.PayPalPaymentID, "PAYER1").Return(&payment.CaptureResult{
			ProviderRef: o.PayPalPaymentID, State: "failed",
		}, nil)

		_, err := f.svc.CompleteRedirect(ctx, o.PayPalPaymentID, "PAYER1")
		assert.ErrorIs(t, err, shared.ErrPaymentDeclined)
		assert.Equal(t, 5, persistencetest.ProductQuantity(t, f.db, p))
	})

	t.Run("provider outage leaves the order awaiting", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "paypal", 1)
		f.paypal.On("Capture", ctx, o.PayPalPaymentID, "PAYER1").Return(nil,
			&payment.ProviderError{Provider: "paypal", Op: "execute", StatusCode: 503, Retryable: true})

		_, err := f.svc.CompleteRedirect(ctx, o.PayPalPaymentID, "PAYER1")
		assert.ErrorIs(t, err, shared.ErrProviderUnavailable)
		assert.Equal(t, order.PaymentStatusAwaitingPayment, f.paymentStatus(t, o.ID))
	})

	t.Run("missing params", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CompleteRedirect(ctx, "", "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestCancelRedirect(t *testing.T) {
	ctx := context.Background()

	t.Run("discards an unapproved paypal order", func(t *testing.T) {
		f := newFixture(t)
		o, p := f.placeOrder(t, "paypal", 2)
		f.paypal.On("GetStatus", ctx, o.PayPalPaymentID).Return(&payment.StatusResult{Provider: "paypal", Status: "created"}, nil)

		res, err := f.svc.CancelRedirect(ctx, shared.Principal{UserID: o.UserID}, o.ID)
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookApplied, res.Status)
		assert.Equal(t, 5, persistencetest.ProductQuantity(t, f.db, p))
	})

	t.Run("keeps an approved payment", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "paypal", 1)
		f.paypal.On("GetStatus", ctx, o.PayPalPaymentID).Return(&payment.StatusResult{Provider: "paypal", Status: "approved"}, nil)

		res, err := f.svc.CancelRedirect(ctx, shared.Principal{UserID: o.UserID}, o.ID)
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookIgnored, res.Status)
		assert.Equal(t, order.PaymentStatusAwaitingPayment, f.paymentStatus(t, o.ID))
	})

	t.Run("another user cannot cancel", func(t *testing.T) {
		f := newFixture(t)
		o, p := f.placeOrder(t, "paypal", 2)

		_, err := f.svc.CancelRedirect(ctx, shared.Principal{UserID: uuid.New()}, o.ID)
		require.ErrorIs(t, err, shared.ErrForbidden)
		assert.Equal(t, order.PaymentStatusAwaitingPayment, f.paymentStatus(t, o.ID))
		assert.Equal(t, 3, persistencetest.ProductQuantity(t, f.db, p))
		f.paypal.AssertNotCalled(t, "GetStatus", mock.Anything, mock.Anything)
	})

	t.Run("admin may cancel", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "paypal", 1)
		f.paypal.On("GetStatus", ctx, o.PayPalPaymentID).Return(&payment.StatusResult{Provider: "paypal", Status: "created"}, nil)

		admin := shared.Principal{UserID: uuid.New(), Roles: []string{shared.RoleAdmin}}
		res, err := f.svc.CancelRedirect(ctx, admin, o.ID)
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookApplied, res.Status)
	})

	t.Run("anonymous caller is rejected", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "paypal", 1)

		_, err := f.svc.CancelRedirect(ctx, shared.Principal{}, o.ID)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("ignores other methods", func(t *testing.T) {
		f := newFixture(t)
		o, _ := f.placeOrder(t, "stripe", 1)

		res, err := f.svc.CancelRedirect(ctx, shared.Principal{UserID: o.UserID}, o.ID)
		require.NoError(t, err)
		assert.Equal(t, apppayment.WebhookIgnored, res.Status)
	})
}
