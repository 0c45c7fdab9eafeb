package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/yngpu/hfjob/pkg/config"
	"github.com/yngpu/hfjob/pkg/errors"
	"github.com/yngpu/hfjob/pkg/k8s/job"
	"github.com/yngpu/hfjob/pkg/logging"
)

const name = "hfjob"

// Exit codes returned by Execute.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

var (
	// overridden during build with ldflags
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "Generate and run Hugging Face GPU training Jobs on Kubernetes",
		Version:               fmt.Sprintf("%s (commit: %s, date: %s)", version, commit, date),
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("HFJOB_DEBUG"),
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Output logs in JSON format",
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write Prometheus metrics in text format to this file on exit",
				Sources: cli.EnvVars("HFJOB_METRICS_FILE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("log-json") {
				logging.SetDefaultStructuredLogger(name, version, cmd.Bool("debug"))
			} else {
				logging.SetDefaultCLILogger(cmd.Bool("debug"))
			}
			slog.Debug("starting", "name", name, "version", version, "commit", commit)
			return ctx, nil
		},
		After: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.String("metrics-file")
			if path == "" {
				return nil
			}
			if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
				slog.Warn("failed to write metrics file", "path", path, "error", err)
				return nil
			}
			slog.Debug("metrics written", "path", path)
			return nil
		},
		// Exit codes are mapped in Execute.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			generateCmd(),
			trainCmd(),
		},
	}
}

// Execute runs the CLI and exits the process with the resulting code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}

	cmd := newRootCmd()
	cmd.Writer = stdout
	cmd.ErrWriter = stderr

	err := cmd.Run(ctx, args)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// exitCode maps an error to a process exit code. Exit statuses of external
// commands pass through unchanged.
func exitCode(err error) int {
	if code, ok := job.ExitStatus(err); ok {
		return code
	}
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidRequest, errors.ErrCodeNotFound:
		return ExitUsage
	default:
		return ExitError
	}
}
