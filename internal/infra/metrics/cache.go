package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitedTotal) }

var rateLimitedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Requests rejected by the per-account rate limiter.",
	},
	[]string{"route"},
)

func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(norm(route)).Inc()
}
