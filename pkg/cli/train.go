package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/yngpu/hfjob/pkg/serializer"
	"github.com/yngpu/hfjob/pkg/server"
	"github.com/yngpu/hfjob/pkg/train"
)

func trainCmd() *cli.Command {
	return &cli.Command{
		Name:                  "train",
		EnableShellCompletion: true,
		Usage:                 "Fine-tune BERT on GLUE MRPC inside the training pod",
		Description: `Runs the training launcher. Storage is resolved from CACHE_DIR (or
MOUNT_PATH) and HF_LOCAL_STORAGE; the models, logs, datasets and cache
directories are created under it. The training plan is written to
logs/plan.json and handed to the trainer command, which receives
HFJOB_PLAN, HF_TOKEN and HF_HOME in its environment.

When the trainer leaves logs/predictions.json behind, accuracy and F1 are
computed and printed.

# Examples

Print the plan without training:
  hfjob train --dry-run

Use a custom trainer:
  hfjob train --trainer "python3 /workspace/train.py"`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "trainer",
				Value:   train.DefaultTrainerCommand,
				Usage:   "Trainer command line, split with shell word rules",
				Sources: cli.EnvVars(train.EnvTrainer),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the training plan as YAML and exit",
			},
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Serve /health, /ready and /metrics on this address while training (e.g., :8080)",
				Sources: cli.EnvVars("HFJOB_LISTEN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := train.EnvFromOS()
			if err != nil {
				return err
			}
			plan := train.NewPlan(env)
			out := serializer.NewWriter(serializer.FormatYAML, stdout(cmd))

			if cmd.Bool("dry-run") {
				return out.Serialize(ctx, plan)
			}

			slog.Info("starting training",
				slog.String("root", plan.Layout.Root),
				slog.String("checkpoint", plan.Model.Checkpoint),
				slog.Int("max_steps", plan.Arguments.MaxSteps),
			)

			var status *server.Server
			if addr := cmd.String("listen"); addr != "" {
				var stop func()
				status, stop, err = startStatusServer(ctx, addr)
				if err != nil {
					return err
				}
				defer stop()
			}

			t := train.NewProcessTrainer(cmd.String("trainer"))
			t.Stdout = stdout(cmd)
			t.Stderr = stderr(cmd)

			if status != nil {
				status.SetReady(true)
			}

			report, err := train.Run(ctx, plan, t)
			if err != nil {
				return err
			}

			if report.Metrics == nil {
				fmt.Fprintf(stdout(cmd), "Training finished in %s, no evaluation output\n", report.Duration)
				return nil
			}
			return out.Serialize(ctx, report.Metrics)
		},
	}
}

// startStatusServer binds addr and serves probes and metrics until the
// returned function is called. The server reports not ready until SetReady.
func startStatusServer(ctx context.Context, addr string) (*server.Server, func(), error) {
	s := server.New(
		server.WithName(name),
		server.WithVersion(version),
		server.WithAddress(addr),
	)
	ln, err := s.Listen(ctx)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Serve(ctx, ln); err != nil {
			slog.Error("status server exited with error", "error", err)
		}
	}()

	return s, func() {
		cancel()
		<-done
	}, nil
}
