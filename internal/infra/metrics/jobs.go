package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(researchSubmissionsTotal, researchResultsTotal) }

var (
	researchSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_submissions_total",
			Help: "Research submissions by outcome.",
		},
		[]string{"outcome"}, // 'created', 'reused', 'retried', 'invalid'
	)

	researchResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_results_total",
			Help: "Worker reports ingested, labeled by reported status.",
		},
		[]string{"status"}, // 'completed', 'failed', 'ignored'
	)
)

func IncSubmission(outcome string) {
	researchSubmissionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncIngest(status string) {
	researchResultsTotal.WithLabelValues(norm(status)).Inc()
}
