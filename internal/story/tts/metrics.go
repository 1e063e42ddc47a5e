package tts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	narrationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairytales_narration_requests_total",
			Help: "Total number of speech synthesis requests.",
		},
		[]string{"status"},
	)
	narrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fairytales_narration_duration_seconds",
			Help:    "Histogram of speech synthesis durations.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func observeNarration(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	narrationRequests.WithLabelValues(status).Inc()
	narrationDuration.Observe(time.Since(start).Seconds())
}
