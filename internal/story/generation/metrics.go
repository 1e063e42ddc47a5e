package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairytales_generation_requests_total",
			Help: "Total number of requests to the text model.",
		},
		[]string{"model", "status"},
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairytales_generation_duration_seconds",
			Help:    "Histogram of text model request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)

func observe(model string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	generationRequests.With(prometheus.Labels{"model": model, "status": status}).Inc()
	generationDuration.With(prometheus.Labels{"model": model}).Observe(time.Since(start).Seconds())
}
