package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		creditDecisionsTotal,
		creditsConsumedTotal,
		creditResetLedgersTotal,
	)
}

var (
	creditDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_decisions_total",
			Help: "Credit gate decisions per operation.",
		},
		[]string{"operation", "decision"}, // decision: 'consumed', 'bypass', 'rejected'
	)

	creditsConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Sum of credits consumed by metered operations.",
		},
	)

	creditResetLedgersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_reset_ledgers_total",
			Help: "Ledgers zeroed by the daily credit reset.",
		},
	)
)

func IncCreditDecision(operation, decision string) {
	creditDecisionsTotal.WithLabelValues(norm(operation), norm(decision)).Inc()
}

func AddCreditsConsumed(n int64) {
	creditsConsumedTotal.Add(float64(n))
}

func IncCreditReset(ledgers int64) {
	creditResetLedgersTotal.Add(float64(ledgers))
}
