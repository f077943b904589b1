package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memoflux",
		Subsystem: "analysis",
		Name:      "requests_total",
		Help:      "Analysis requests by outcome.",
	}, []string{"outcome"})

	requestSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "memoflux",
		Subsystem: "analysis",
		Name:      "request_seconds",
		Help:      "Wall time of analysis requests.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})
)

func observe(err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	requestsTotal.WithLabelValues(outcome).Inc()
	requestSeconds.Observe(elapsed.Seconds())
}
