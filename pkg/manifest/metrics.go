package manifest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hfjob_manifest_render_duration_seconds",
			Help:    "Duration of Job manifest rendering in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	renderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfjob_manifest_render_total",
			Help: "Total number of Job manifest render attempts",
		},
		[]string{"status"}, // success or error
	)
)
