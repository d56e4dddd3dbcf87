package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usageRecordedTotal,
		ledgerWriteFailuresTotal,
		demoClaimsTotal,
	)
}

var (
	usageRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_recorded_total",
			Help: "Consumption events appended to the usage ledger, by mode and allowance.",
		},
		[]string{"mode", "allowance"}, // allowance: demo|premium
	)

	ledgerWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_ledger_write_failures_total",
			Help: "Consumptions served but not recorded (quota under-count; alert on any increase).",
		},
	)

	demoClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_claims_total",
			Help: "Demo claim attempts by result; store_* results come from the account store reservation.",
		},
		[]string{"result"},
	)
)

func IncUsageRecorded(mode string, demo bool) {
	allowance := "premium"
	if demo {
		allowance = "demo"
	}
	usageRecordedTotal.WithLabelValues(norm(mode), allowance).Inc()
}

func IncLedgerWriteFailure() {
	ledgerWriteFailuresTotal.Inc()
}

func IncDemoClaim(result string) {
	demoClaimsTotal.WithLabelValues(norm(result)).Inc()
}
