package train

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Report summarizes a finished training run.
type Report struct {
	Plan     *Plan         `json:"plan" yaml:"plan"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	// Metrics is nil when the trainer produced no predictions.
	Metrics *Metrics `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Run prepares the storage layout for plan, trains with t and scores the
// trainer's predictions.
func Run(ctx context.Context, plan *Plan, t Trainer) (*Report, error) {
	start := time.Now()
	report, err := run(ctx, plan, t)
	runDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		runTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	runTotal.WithLabelValues("success").Inc()
	return report, nil
}

func run(ctx context.Context, plan *Plan, t Trainer) (*Report, error) {
	if err := plan.Layout.Ensure(); err != nil {
		return nil, err
	}
	slog.Debug("storage layout ready", "root", plan.Layout.Root)

	res, err := t.Train(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	report := &Report{Plan: plan, Duration: res.Duration}
	if res.Predictions == nil {
		slog.Warn("trainer produced no predictions, skipping evaluation",
			"path", plan.PredictionsPath())
		return report, nil
	}

	m, err := ComputeMetrics(res.Predictions.Logits, res.Predictions.Labels)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	evalAccuracy.Set(m.Accuracy)
	evalF1.Set(m.F1)
	report.Metrics = &m

	slog.Info("evaluation complete",
		"accuracy", m.Accuracy,
		"f1", m.F1,
		"examples", m.Examples)
	return report, nil
}
