package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts checkout orders by payment method.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Orders created, labeled by payment method.",
	}, []string{"method"})

	// OrdersConfirmed counts orders that reached CONFIRMED.
	OrdersConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_confirmed_total",
		Help: "Orders confirmed by a payment event, labeled by payment method.",
	}, []string{"method"})

	// GatewayAttemptDuration tracks full three-step charge attempts.
	GatewayAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_gateway_attempt_duration_seconds",
		Help:    "Duration of a full gateway charge attempt (customer+charge+qrcode).",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// KeyFallbacks counts charges that only succeeded on a fallback key.
	KeyFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_key_fallbacks_total",
		Help: "Charge orchestrations that succeeded with a fallback credential.",
	})

	// WebhooksProcessed counts webhook deliveries by event and outcome.
	WebhooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_webhooks_processed_total",
		Help: "Webhook deliveries, labeled by event type and outcome.",
	}, []string{"event", "outcome"})
)
