package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	cartapp "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/application/inventory"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

const maxNumberAttempts = 5

// settleTimeout bounds the post-commit work of a checkout. It runs detached
// from the request so a disconnect cannot strand a reservation.
const settleTimeout = 10 * time.Second

// Metrics receives order lifecycle measurements
type Metrics interface {
	RecordOrderCreated(ctx context.Context, method string, amount decimal.Decimal)
	RecordOrderTransition(ctx context.Context, method string, transition string)
}

type nopMetrics struct{}

func (nopMetrics) RecordOrderCreated(context.Context, string, decimal.Decimal) {}
func (nopMetrics) RecordOrderTransition(context.Context, string, string)       {}

// Transition names reported to Metrics
const (
	TransitionPaid        = "paid"
	TransitionDiscarded   = "discarded"
	TransitionRefunded    = "refunded"
	TransitionInitFailed  = "payment_init_failed"
	TransitionAdminDelete = "deleted"
)

// ServiceConfig configures a Service
type ServiceConfig struct {
	Orders    order.Repository
	Scope     TransactionScope
	Ledger    *inventory.Ledger
	Providers *payment.Registry
	Publisher shared.EventPublisher
	Numbers   *order.NumberGenerator
	Metrics   Metrics
	Currency  valueobject.Currency
	Logger    *zap.Logger
}

// Service owns the order state machine. Every state change runs in one
// transaction with the order row locked; provider calls stay outside
// transactions.
type Service struct {
	orders    order.Repository
	scope     TransactionScope
	ledger    *inventory.Ledger
	providers *payment.Registry
	publisher shared.EventPublisher
	numbers   *order.NumberGenerator
	metrics   Metrics
	currency  valueobject.Currency
	logger    *zap.Logger
}

// NewService creates a new order Service
func NewService(cfg ServiceConfig) *Service {
	if cfg.Ledger == nil {
		cfg.Ledger = inventory.NewLedger(inventory.LedgerConfig{Logger: cfg.Logger})
	}
	if cfg.Providers == nil {
		cfg.Providers = payment.NewRegistry()
	}
	if cfg.Numbers == nil {
		cfg.Numbers = order.NewNumberGenerator()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Currency == "" {
		cfg.Currency = valueobject.DefaultCurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		orders:    cfg.Orders,
		scope:     cfg.Scope,
		ledger:    cfg.Ledger,
		providers: cfg.Providers,
		publisher: cfg.Publisher,
		numbers:   cfg.Numbers,
		metrics:   cfg.Metrics,
		currency:  cfg.Currency,
		logger:    cfg.Logger,
	}
}

// CreateOrder checks out the principal's cart. Stock is reserved, the order
// and its items are written and the cart is cleared in one transaction. For
// online methods the payment intent is then created; if that fails the
// reservation is compensated and ErrPaymentInitFailed returned.
func (s *Service) CreateOrder(ctx context.Context, principal shared.Principal, in CheckoutInput) (*CheckoutResult, error) {
	if principal.UserID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	method, err := order.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	address, err := valueobject.NewDeliveryAddress(in.DeliveryAddress.City, in.DeliveryAddress.Address, in.DeliveryAddress.BuildingNumber)
	if err != nil {
		var fe *valueobject.FieldError
		if errors.As(err, &fe) {
			return nil, shared.NewValidationError("delivery_address."+fe.Field, fe.Error())
		}
		return nil, err
	}

	var provider payment.Provider
	if method.IsOnline() {
		provider, err = s.providers.Get(string(method))
		if err != nil {
			return nil, shared.NewValidationError("payment_method", "Payment method is not available")
		}
	}

	number, err := s.nextOrderNumber(ctx)
	if err != nil {
		return nil, err
	}

	var (
		created   *order.Order
		cartLines []cart.Line
		draft     *cartapp.Draft
		events    []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines, err := repos.Carts().FindByUser(ctx, principal.UserID)
		if err != nil {
			return err
		}
		cartLines = lines

		draft, err = cartapp.PriceCart(ctx, repos.Carts(), repos.Products(), principal.UserID)
		if err != nil {
			return err
		}

		reservations := make([]inventory.Reservation, len(draft.Lines))
		items := make([]order.ItemDraft, len(draft.Lines))
		for i, l := range draft.Lines {
			reservations[i] = inventory.Reservation{ProductID: l.ProductID, Quantity: l.Quantity}
			items[i] = order.ItemDraft{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
		}
		if err := s.ledger.ReserveAll(ctx, repos.Products(), reservations); err != nil {
			return err
		}

		created, err = order.NewOrder(number, principal.UserID, method, address, in.Notes, items)
		if err != nil {
			return err
		}
		if err := repos.Orders().Save(ctx, created); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		if err := repos.Carts().DeleteByUser(ctx, principal.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		events = created.PullDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("order_id", created.ID.String()),
		zap.String("order_number", created.OrderNumber),
		zap.String("payment_method", string(method)))

	result := &CheckoutResult{Order: created}
	if provider != nil {
		intent, err := provider.CreateIntent(ctx, s.intentRequest(created, draft, in.Locale))
		settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		defer cancel()
		if err == nil {
			err = s.attachPaymentRef(settleCtx, created, intent.ProviderRef)
		}
		if err != nil {
			log.Warn("payment initialization failed, compensating", zap.Error(err))
			if cerr := s.compensateCheckout(settleCtx, created, cartLines); cerr != nil {
				log.Error("checkout compensation failed", zap.Error(cerr))
				return nil, errors.Join(fmt.Errorf("%w: %v", shared.ErrPaymentInitFailed, err), cerr)
			}
			s.metrics.RecordOrderTransition(ctx, string(method), TransitionInitFailed)
			return nil, fmt.Errorf("%w: %v", shared.ErrPaymentInitFailed, err)
		}
		result.ClientSecret = intent.ClientSecret
		result.ApprovalURL = intent.ApprovalURL
	}

	log.Info("order created", zap.String("total_amount", valueobject.FormatAmount(created.TotalAmount)))
	s.metrics.RecordOrderCreated(ctx, string(method), created.TotalAmount)
	s.publish(ctx, events)
	return result, nil
}

func (s *Service) nextOrderNumber(ctx context.Context) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		number, err := s.numbers.Next()
		if err != nil {
			return "", err
		}
		exists, err := s.orders.ExistsByNumber(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique order number after %d attempts", maxNumberAttempts)
}

func (s *Service) intentRequest(o *order.Order, draft *cartapp.Draft, locale shared.Locale) payment.IntentRequest {
	items := make([]payment.IntentItem, len(draft.Lines))
	for i, l := range draft.Lines {
		items[i] = payment.IntentItem{
			Name:     l.Name.Get(locale),
			Price:    l.UnitPrice,
			Quantity: l.Quantity,
		}
	}
	return payment.IntentRequest{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Amount:      o.TotalAmount,
		Currency:    string(s.currency),
		Items:       items,
		Locale:      locale,
	}
}

func (s *Service) attachPaymentRef(ctx context.Context, o *order.Order, ref string) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Orders().FindByIDForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := locked.AttachPaymentRef(ref); err != nil {
			return err
		}
		if err := repos.Orders().Save(ctx, locked); err != nil {
			return err
		}
		*o = *locked
		return nil
	})
}

// compensateCheckout undoes a checkout whose payment could not be started:
// stock is released, the order deleted and the cart lines put back.
func (s *Service) compensateCheckout(ctx context.Context, o *order.Order, lines []cart.Line) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Orders().FindByIDForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if locked.PaymentStatus.IsFinal() {
			return shared.ErrInvalidState.WithMessage("Order was paid during compensation")
		}
		if err := s.ledger.ReleaseAll(ctx, repos.Products(), reservationsOf(locked)); err != nil {
			return err
		}
		if err := repos.Orders().Delete(ctx, locked.ID); err != nil {
			return err
		}

		current, err := repos.Carts().FindByUser(ctx, locked.UserID)
		if err != nil {
			return err
		}
		present := make(map[uuid.UUID]bool, len(current))
		for _, l := range current {
			present[l.ProductID] = true
		}
		restore := make([]cart.Line, 0, len(lines))
		for _, l := range lines {
			if !present[l.ProductID] {
				restore = append(restore, l)
			}
		}
		return repos.Carts().SaveAll(ctx, restore)
	})
}

// MarkPaid applies a confirmed capture: awaiting_payment -> paid
func (s *Service) MarkPaid(ctx context.Context, orderID uuid.UUID, captureRef string) (*TransitionOutcome, error) {
	var (
		outcome TransitionOutcome
		events  []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		outcome.Order = o
		applied, err := o.MarkPaid(captureRef)
		if err != nil || !applied {
			return err
		}
		if err := repos.Orders().Save(ctx, o); err != nil {
			return err
		}
		outcome.Applied = true
		events = o.PullDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome.Applied {
		s.logger.Info("order paid",
			zap.String("order_id", orderID.String()),
			zap.String("capture_ref", captureRef))
		s.metrics.RecordOrderTransition(ctx, string(outcome.Order.PaymentMethod), TransitionPaid)
		s.publish(ctx, events)
	}
	return &outcome, nil
}

// Discard releases the stock of an order whose payment failed, was denied or
// cancelled, then deletes it. Paid and refunded orders are left untouched.
func (s *Service) Discard(ctx context.Context, orderID uuid.UUID, reason string) (*TransitionOutcome, error) {
	var (
		outcome TransitionOutcome
		method  order.PaymentMethod
		events  []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		outcome.Order = o
		applied, err := o.Discard(reason)
		if err != nil || !applied {
			return err
		}
		if err := s.ledger.ReleaseAll(ctx, repos.Products(), reservationsOf(o)); err != nil {
			return err
		}
		if err := repos.Orders().Delete(ctx, o.ID); err != nil {
			return err
		}
		outcome.Applied = true
		outcome.Order = nil
		method = o.PaymentMethod
		events = o.PullDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome.Applied {
		s.logger.Info("order discarded",
			zap.String("order_id", orderID.String()),
			zap.String("reason", reason))
		s.metrics.RecordOrderTransition(ctx, string(method), TransitionDiscarded)
		s.publish(ctx, events)
	}
	return &outcome, nil
}

// MarkRefunded records a refund: paid -> refunded, returning stock
func (s *Service) MarkRefunded(ctx context.Context, orderID uuid.UUID, refundRef string) (*TransitionOutcome, error) {
	var (
		outcome TransitionOutcome
		events  []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		outcome.Order = o
		applied, err := o.MarkRefunded(refundRef)
		if err != nil || !applied {
			return err
		}
		if err := s.ledger.ReleaseAll(ctx, repos.Products(), reservationsOf(o)); err != nil {
			return err
		}
		if err := repos.Orders().Save(ctx, o); err != nil {
			return err
		}
		outcome.Applied = true
		events = o.PullDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome.Applied {
		s.logger.Info("order refunded",
			zap.String("order_id", orderID.String()),
			zap.String("refund_id", refundRef))
		s.metrics.RecordOrderTransition(ctx, string(outcome.Order.PaymentMethod), TransitionRefunded)
		s.publish(ctx, events)
	}
	return &outcome, nil
}

// Refund is the admin refund. The provider refund runs outside any
// transaction; the state change then re-checks the order under lock, so a
// refund webhook that got there first turns this into a no-op.
func (s *Service) Refund(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*order.Order, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != order.PaymentStatusPaid {
		return nil, shared.ErrNotPaid
	}
	provider, err := s.providers.Get(string(o.PaymentMethod))
	if err != nil {
		return nil, err
	}

	res, err := provider.Refund(ctx, payment.RefundRequest{
		OrderID:     o.ID,
		ProviderRef: o.CorrelationRef(),
		CaptureRef:  o.CaptureRef,
		Amount:      o.TotalAmount,
		Currency:    string(s.currency),
	})
	if err != nil {
		s.logger.Warn("provider refund failed",
			zap.String("order_id", o.ID.String()),
			zap.String("provider", provider.Name()),
			zap.Error(err))
		if payment.IsUnavailable(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrPaymentDeclined, err)
	}

	outcome, err := s.MarkRefunded(ctx, orderID, res.RefundID)
	if err != nil {
		return nil, err
	}
	return outcome.Order, nil
}

// UpdateStatus changes the fulfillment status (admin only)
func (s *Service) UpdateStatus(ctx context.Context, principal shared.Principal, orderID uuid.UUID, status string) (*order.Order, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}
	newStatus, err := order.ParseFulfillmentStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		updated *order.Order
		events  []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.UpdateStatus(newStatus); err != nil {
			return err
		}
		if err := repos.Orders().Save(ctx, o); err != nil {
			return err
		}
		updated = o
		events = o.PullDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return updated, nil
}

// Get returns an order to its owner or an admin
func (s *Service) Get(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*order.Order, error) {
	if principal.UserID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeViewedBy(principal) {
		return nil, shared.ErrForbidden
	}
	return o, nil
}

// ListForUser lists the principal's own orders, newest first
func (s *Service) ListForUser(ctx context.Context, principal shared.Principal, page shared.Page) (shared.Paginated[order.Order], error) {
	if principal.UserID == uuid.Nil {
		return shared.Paginated[order.Order]{}, shared.ErrUnauthorized
	}
	userID := principal.UserID
	return s.list(ctx, order.Filter{UserID: &userID, Page: page})
}

// ListAll lists every order matching the filter (admin only)
func (s *Service) ListAll(ctx context.Context, principal shared.Principal, f AdminFilter) (shared.Paginated[order.Order], error) {
	if err := principal.RequireAdmin(); err != nil {
		return shared.Paginated[order.Order]{}, err
	}
	filter := order.Filter{
		UserID:    f.UserID,
		DateFrom:  f.DateFrom,
		DateTo:    f.DateTo,
		SortBy:    f.SortBy,
		SortOrder: f.SortOrder,
		Page:      shared.Page{Page: f.Page, PageSize: f.PageSize},
	}
	if f.Status != "" {
		status, err := order.ParseFulfillmentStatus(f.Status)
		if err != nil {
			return shared.Paginated[order.Order]{}, err
		}
		filter.Status = status
	}
	if f.PaymentStatus != "" {
		ps := order.PaymentStatus(f.PaymentStatus)
		if !ps.IsValid() {
			return shared.Paginated[order.Order]{}, shared.NewValidationError("payment_status", "Invalid payment status")
		}
		filter.PaymentStatus = ps
	}
	if f.PaymentMethod != "" {
		method, err := order.ParsePaymentMethod(f.PaymentMethod)
		if err != nil {
			return shared.Paginated[order.Order]{}, err
		}
		filter.PaymentMethod = method
	}
	return s.list(ctx, filter)
}

func (s *Service) list(ctx context.Context, filter order.Filter) (shared.Paginated[order.Order], error) {
	filter.Page = filter.Page.Normalize()
	orders, total, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[order.Order]{}, err
	}
	return shared.NewPaginated(orders, total, filter.Page), nil
}

// Delete removes an unpaid order and returns its stock (admin only)
func (s *Service) Delete(ctx context.Context, principal shared.Principal, orderID uuid.UUID) error {
	if err := principal.RequireAdmin(); err != nil {
		return err
	}
	var method order.PaymentMethod
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.CanDelete(); err != nil {
			return err
		}
		if err := s.ledger.ReleaseAll(ctx, repos.Products(), reservationsOf(o)); err != nil {
			return err
		}
		method = o.PaymentMethod
		return repos.Orders().Delete(ctx, o.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("order deleted by admin",
		zap.String("order_id", orderID.String()),
		zap.String("admin_id", principal.UserID.String()))
	s.metrics.RecordOrderTransition(ctx, string(method), TransitionAdminDelete)
	return nil
}

// PaymentStatus reports the provider's view of the order's payment. Cash on
// delivery orders, and orders without a provider reference, report the local
// status.
func (s *Service) PaymentStatus(ctx context.Context, principal shared.Principal, orderID uuid.UUID) (*payment.StatusResult, error) {
	o, err := s.Get(ctx, principal, orderID)
	if err != nil {
		return nil, err
	}
	ref := o.CorrelationRef()
	if !o.PaymentMethod.IsOnline() || ref == "" {
		return &payment.StatusResult{
			Provider:  string(o.PaymentMethod),
			Status:    string(o.PaymentStatus),
			Amount:    o.TotalAmount,
			Currency:  string(s.currency),
			Completed: o.PaymentStatus.IsFinal(),
		}, nil
	}
	provider, err := s.providers.Get(string(o.PaymentMethod))
	if err != nil {
		return nil, err
	}
	return provider.GetStatus(ctx, ref)
}

func (s *Service) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish order events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}

func reservationsOf(o *order.Order) []inventory.Reservation {
	out := make([]inventory.Reservation, len(o.Items))
	for i, it := range o.Items {
		out[i] = inventory.Reservation{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}
