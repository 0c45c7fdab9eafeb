package job

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hfjob_job_submit_duration_seconds",
			Help:    "Time taken to apply a Job to the cluster",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
	)

	submitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfjob_job_submit_total",
			Help: "Total number of Job apply attempts",
		},
		[]string{"runner", "status"}, // kubectl or api; success or error
	)
)
