package job

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner names accepted by --runner.
const (
	RunnerKubectl = "kubectl"
	RunnerAPI     = "api"
)

// SupportedRunners returns the accepted runner names.
func SupportedRunners() []string {
	return []string{RunnerKubectl, RunnerAPI}
}

// DefaultKubectl is the kubectl binary looked up on PATH.
const DefaultKubectl = "kubectl"

// ExitError reports a non-zero exit of an external command.
// It satisfies the urfave/cli ExitCoder interface.
type ExitError struct {
	Command string
	Code    int
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the command's exit status.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// KubectlRunner applies manifests with the kubectl command-line tool.
type KubectlRunner struct {
	// Binary is the kubectl executable; DefaultKubectl when empty.
	Binary string
	// Kubeconfig is passed as --kubeconfig when set.
	Kubeconfig string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Apply runs `kubectl apply -f path`.
func (r *KubectlRunner) Apply(ctx context.Context, path string) error {
	bin := r.Binary
	if bin == "" {
		bin = DefaultKubectl
	}

	args := []string{"apply", "-f", path}
	if r.Kubeconfig != "" {
		args = append(args, "--kubeconfig", r.Kubeconfig)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = orDefault(r.Stdout, os.Stdout)
	cmd.Stderr = orDefault(r.Stderr, os.Stderr)

	slog.Debug("running kubectl", "command", bin+" "+strings.Join(args, " "))

	start := time.Now()
	err := cmd.Run()
	submitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		submitTotal.WithLabelValues(RunnerKubectl, "error").Inc()
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return &ExitError{Command: bin, Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("failed to run %s: %w", bin, err)
	}

	submitTotal.WithLabelValues(RunnerKubectl, "success").Inc()
	return nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// ExitStatus returns the exit status carried by err, if any.
func ExitStatus(err error) (int, bool) {
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
