package train

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yngpu/hfjob/pkg/header"
)

// File names inside the logs directory shared with the trainer process.
const (
	PlanFile        = "plan.json"
	PredictionsFile = "predictions.json"
)

const planFilePerm = 0o600

// KindTrainingPlan is the header kind of a serialized Plan.
const KindTrainingPlan = "TrainingPlan"

// Plan is the complete description of a training run handed to the trainer.
type Plan struct {
	header.Header `json:",inline" yaml:",inline"`

	Layout    Layout    `json:"layout" yaml:"layout"`
	Dataset   Dataset   `json:"dataset" yaml:"dataset"`
	Model     Model     `json:"model" yaml:"model"`
	Metric    Metric    `json:"metric" yaml:"metric"`
	Arguments Arguments `json:"arguments" yaml:"arguments"`

	// Token is passed through the environment and never serialized.
	Token string `json:"-" yaml:"-"`
}

// NewPlan returns the fixed MRPC fine-tuning plan for env.
func NewPlan(env *Env) *Plan {
	l := NewLayout(env.Root())
	p := &Plan{
		Layout:    l,
		Dataset:   DefaultDatasetFor(l),
		Model:     DefaultModelFor(l),
		Metric:    DefaultMetricFor(l),
		Arguments: DefaultArguments(l),
		Token:     env.Token,
	}
	p.Set(KindTrainingPlan, time.Now())
	return p
}

// PlanPath returns where the plan is written for the trainer.
func (p *Plan) PlanPath() string {
	return filepath.Join(p.Layout.Logs, PlanFile)
}

// PredictionsPath returns where the trainer leaves its evaluation output.
func (p *Plan) PredictionsPath() string {
	return filepath.Join(p.Layout.Logs, PredictionsFile)
}

// Write stores the plan as indented JSON at PlanPath.
func (p *Plan) Write() (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan: %w", err)
	}

	path := p.PlanPath()
	if err := os.WriteFile(path, append(data, '\n'), planFilePerm); err != nil {
		return "", fmt.Errorf("failed to write plan %s: %w", path, err)
	}
	return path, nil
}
