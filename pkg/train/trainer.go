package train

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/yngpu/hfjob/pkg/errors"
)

// Environment passed to the trainer process.
const (
	EnvTrainer = "HFJOB_TRAINER"
	EnvPlan    = "HFJOB_PLAN"
	EnvHFHome  = "HF_HOME"
)

// DefaultTrainerCommand runs the bundled Python trainer module.
const DefaultTrainerCommand = "python3 -m hfjob_trainer"

// Result is what a trainer reports back after training and evaluation.
type Result struct {
	PlanPath string `json:"plan_path" yaml:"plan_path"`
	// Predictions is nil when the trainer produced no evaluation output.
	Predictions *Predictions `json:"-" yaml:"-"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Predictions is the trainer's evaluation output.
type Predictions struct {
	Logits [][]float64 `json:"logits"`
	Labels []int       `json:"labels"`
}

// Trainer runs a training plan.
type Trainer interface {
	Train(ctx context.Context, plan *Plan) (*Result, error)
}

// ProcessTrainer runs training in an external process.
type ProcessTrainer struct {
	// Command is the shell-style trainer command line.
	Command string
	Stdout  io.Writer
	Stderr  io.Writer
	// Environ is the base environment; os.Environ() when nil.
	Environ []string
}

// NewProcessTrainer returns a trainer running command, or the default
// trainer command when command is empty.
func NewProcessTrainer(command string) *ProcessTrainer {
	if command == "" {
		command = DefaultTrainerCommand
	}
	return &ProcessTrainer{Command: command}
}

// Train writes the plan, runs the trainer command and collects predictions.
func (t *ProcessTrainer) Train(ctx context.Context, plan *Plan) (*Result, error) {
	argv, err := shellwords.Parse(t.Command)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid trainer command", err)
	}
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "trainer command is empty")
	}

	planPath, err := plan.Write()
	if err != nil {
		return nil, err
	}
	if err := removePredictions(plan.PredictionsPath()); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = orDefault(t.Stdout, os.Stdout)
	cmd.Stderr = orDefault(t.Stderr, os.Stderr)
	cmd.Env = append(t.environ(),
		EnvPlan+"="+planPath,
		EnvHFToken+"="+plan.Token,
		EnvHFHome+"="+plan.Layout.Cache,
	)

	slog.Info("starting trainer", "command", t.Command, "plan", planPath)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return nil, errors.WrapWithContext(errors.ErrCodeInternal, "trainer failed", err,
				map[string]any{"command": t.Command, "status": exitErr.ExitCode()})
		}
		return nil, fmt.Errorf("failed to run trainer %q: %w", argv[0], err)
	}

	res := &Result{PlanPath: planPath, Duration: time.Since(start)}
	preds, err := readPredictions(plan.PredictionsPath())
	if err != nil {
		return nil, err
	}
	res.Predictions = preds
	return res, nil
}

func (t *ProcessTrainer) environ() []string {
	if t.Environ != nil {
		return append([]string(nil), t.Environ...)
	}
	return os.Environ()
}

// removePredictions clears output left by an earlier run on the same storage.
func removePredictions(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale predictions %s: %w", path, err)
	}
	return nil
}

// readPredictions returns nil when the trainer wrote no predictions file.
func readPredictions(path string) (*Predictions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read predictions %s: %w", path, err)
	}

	var p Predictions
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "invalid predictions file "+path, err)
	}
	return &p, nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
