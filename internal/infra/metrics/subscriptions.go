package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		entitlementDecisionsTotal,
		premiumExpiredTotal,
		premiumGrantedTotal,
		premiumRevokedTotal,
	)
}

var (
	entitlementDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_decisions_total",
			Help: "Entitlement evaluations by reason (premium/demo_available/demo_exhausted/unauthenticated).",
		},
		[]string{"reason"},
	)

	premiumExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_expired_total",
			Help: "Stale premium flags cleared, by path (lazy/sweep).",
		},
		[]string{"path"},
	)

	premiumGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_granted_total",
			Help: "Premium grants applied from completed checkouts, by plan.",
		},
		[]string{"plan"},
	)

	premiumRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "premium_revoked_total",
			Help: "Premium revocations applied from subscription cancellations.",
		},
	)
)

func IncEntitlementDecision(reason string) {
	entitlementDecisionsTotal.WithLabelValues(norm(reason)).Inc()
}

func IncPremiumExpired(path string, count int) {
	premiumExpiredTotal.WithLabelValues(norm(path)).Add(float64(count))
}

func IncPremiumGranted(plan string) {
	premiumGrantedTotal.WithLabelValues(norm(plan)).Inc()
}

func IncPremiumRevoked() {
	premiumRevokedTotal.Inc()
}
