package telemetry

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when BusinessMetrics is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StockStatsProvider reports catalog stock levels for the stock gauges.
type StockStatsProvider interface {
	StockStats(ctx context.Context) (StockStats, error)
}

// StockStats is a point-in-time view of catalog availability.
type StockStats struct {
	OutOfStock      int64
	AutoDeactivated int64
	AwaitingPayment int64
}

// BusinessMetrics records storefront order and payment activity over OTel.
// It satisfies the metrics hooks of the order and reconciliation services.
type BusinessMetrics struct {
	logger *zap.Logger

	ordersCreated    *Counter
	orderAmount      *Histogram
	orderTransitions *Counter
	webhookEvents    *Counter
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
	// Stock is optional; when set, stock gauges are observed on each collection
	Stock StockStatsProvider
}

// NewBusinessMetrics creates the business instruments on cfg.Meter.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{logger: logger}

	var err error
	if bm.ordersCreated, err = NewCounter(cfg.Meter,
		"storefront_orders_created_total", "Orders placed", "{orders}"); err != nil {
		return nil, err
	}
	if bm.orderAmount, err = NewHistogram(cfg.Meter,
		"storefront_order_amount", "Order totals in major currency units", "{currency}", OrderAmountBuckets...); err != nil {
		return nil, err
	}
	if bm.orderTransitions, err = NewCounter(cfg.Meter,
		"storefront_order_transitions_total", "Order payment state transitions", "{transitions}"); err != nil {
		return nil, err
	}
	if bm.webhookEvents, err = NewCounter(cfg.Meter,
		"storefront_payment_events_total", "Payment provider events by outcome", "{events}"); err != nil {
		return nil, err
	}

	if cfg.Stock != nil {
		if err := bm.registerStockGauges(cfg.Meter, cfg.Stock); err != nil {
			return nil, err
		}
	}

	return bm, nil
}

func (bm *BusinessMetrics) registerStockGauges(meter metric.Meter, stock StockStatsProvider) error {
	outOfStock, err := meter.Int64ObservableGauge("storefront_products_out_of_stock",
		metric.WithDescription("Active products with zero stock"), metric.WithUnit("{products}"))
	if err != nil {
		return err
	}
	deactivated, err := meter.Int64ObservableGauge("storefront_products_auto_deactivated",
		metric.WithDescription("Products deactivated by stock depletion"), metric.WithUnit("{products}"))
	if err != nil {
		return err
	}
	awaiting, err := meter.Int64ObservableGauge("storefront_orders_awaiting_payment",
		metric.WithDescription("Orders holding stock while waiting for payment"), metric.WithUnit("{orders}"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		stats, err := stock.StockStats(ctx)
		if err != nil {
			bm.logger.Warn("Failed to collect stock metrics", zap.Error(err))
			return nil
		}
		o.ObserveInt64(outOfStock, stats.OutOfStock)
		o.ObserveInt64(deactivated, stats.AutoDeactivated)
		o.ObserveInt64(awaiting, stats.AwaitingPayment)
		return nil
	}, outOfStock, deactivated, awaiting)
	return err
}

// RecordOrderCreated counts a placed order and its total.
func (bm *BusinessMetrics) RecordOrderCreated(ctx context.Context, method string, amount decimal.Decimal) {
	bm.ordersCreated.Inc(ctx, AttrPaymentMethod.String(method))
	bm.orderAmount.Record(ctx, amount.InexactFloat64(), AttrPaymentMethod.String(method))
}

// RecordOrderTransition counts a payment state change (paid, discarded, refunded).
func (bm *BusinessMetrics) RecordOrderTransition(ctx context.Context, method, transition string) {
	bm.orderTransitions.Inc(ctx, AttrPaymentMethod.String(method), AttrTransition.String(transition))
}

// RecordWebhook counts a provider event by outcome.
func (bm *BusinessMetrics) RecordWebhook(ctx context.Context, provider, eventType, outcome string) {
	bm.webhookEvents.Inc(ctx,
		AttrProvider.String(provider),
		AttrEventType.String(eventType),
		AttrOutcome.String(outcome),
	)
}

// OrderRecorder is the order service metrics hook.
type OrderRecorder interface {
	RecordOrderCreated(ctx context.Context, method string, amount decimal.Decimal)
	RecordOrderTransition(ctx context.Context, method, transition string)
}

// WebhookRecorder is the reconciliation service metrics hook.
type WebhookRecorder interface {
	RecordWebhook(ctx context.Context, provider, eventType, outcome string)
}

// Recorder is implemented by BusinessMetrics and PrometheusMetrics.
type Recorder interface {
	OrderRecorder
	WebhookRecorder
}

// Recorders fans one observation out to several backends.
type Recorders []Recorder

// RecordOrderCreated implements OrderRecorder.
func (rs Recorders) RecordOrderCreated(ctx context.Context, method string, amount decimal.Decimal) {
	for _, r := range rs {
		r.RecordOrderCreated(ctx, method, amount)
	}
}

// RecordOrderTransition implements OrderRecorder.
func (rs Recorders) RecordOrderTransition(ctx context.Context, method, transition string) {
	for _, r := range rs {
		r.RecordOrderTransition(ctx, method, transition)
	}
}

// RecordWebhook implements WebhookRecorder.
func (rs Recorders) RecordWebhook(ctx context.Context, provider, eventType, outcome string) {
	for _, r := range rs {
		r.RecordWebhook(ctx, provider, eventType, outcome)
	}
}
