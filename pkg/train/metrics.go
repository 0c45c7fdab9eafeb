package train

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hfjob_train_run_duration_seconds",
			Help:    "Duration of trainer process runs in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 3600},
		},
	)

	runTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hfjob_train_run_total",
			Help: "Total number of training runs",
		},
		[]string{"status"}, // success or error
	)

	evalAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hfjob_train_eval_accuracy",
			Help: "Accuracy of the most recent evaluation",
		},
	)

	evalF1 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hfjob_train_eval_f1",
			Help: "Binary F1 of the most recent evaluation",
		},
	)
)
