package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		billingEventsTotal,
		paymentsRevenueTotal,
		webhookReconcileFailuresTotal,
	)
}

var (
	billingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_events_total",
			Help: "Processor webhook events by type and reconciliation outcome.",
		},
		[]string{"type", "outcome"}, // outcome: applied|duplicate|unknown_customer|stale|ignored|malformed|failed
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	webhookReconcileFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_webhook_reconcile_failures_total",
			Help: "Acknowledged webhook deliveries that could not be reconciled and need manual repair.",
		},
	)
)

func IncBillingEvent(eventType, outcome string) {
	billingEventsTotal.WithLabelValues(norm(eventType), norm(outcome)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncWebhookReconcileFailure() {
	webhookReconcileFailuresTotal.Inc()
}
