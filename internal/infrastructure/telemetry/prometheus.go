package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// PrometheusMetrics exposes order and webhook counters for scraping. It has
// its own registry so tests and multiple servers never collide on the
// global default registerer.
type PrometheusMetrics struct {
	registry         *prometheus.Registry
	webhookEvents    *prometheus.CounterVec
	ordersCreated    *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	orderAmount      *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the storefront collectors plus the Go
// runtime and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_payment_webhook_events_total",
			Help: "Payment provider events by provider, normalized type and outcome.",
		}, []string{"provider", "type", "outcome"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders placed by payment method.",
		}, []string{"method"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Order payment state transitions.",
		}, []string{"method", "transition"}),
		orderAmount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_order_amount",
			Help:    "Order totals in major currency units.",
			Buckets: OrderAmountBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.webhookEvents,
		m.ordersCreated,
		m.orderTransitions,
		m.orderAmount,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordWebhook implements WebhookRecorder.
func (m *PrometheusMetrics) RecordWebhook(_ context.Context, provider, eventType, outcome string) {
	m.webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

// RecordOrderCreated implements OrderRecorder.
func (m *PrometheusMetrics) RecordOrderCreated(_ context.Context, method string, amount decimal.Decimal) {
	m.ordersCreated.WithLabelValues(method).Inc()
	m.orderAmount.WithLabelValues(method).Observe(amount.InexactFloat64())
}

// RecordOrderTransition implements OrderRecorder.
func (m *PrometheusMetrics) RecordOrderTransition(_ context.Context, method, transition string) {
	m.orderTransitions.WithLabelValues(method, transition).Inc()
}
