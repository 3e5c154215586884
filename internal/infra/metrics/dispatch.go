package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dispatchLatencyMs) }

var dispatchLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "worker_dispatch_latency_ms",
		Help:    "Latency of research job hand-offs to the worker in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	},
	[]string{"success"},
)

func ObserveDispatch(success bool, d time.Duration) {
	dispatchLatencyMs.WithLabelValues(strconv.FormatBool(success)).Observe(float64(d.Milliseconds()))
}
