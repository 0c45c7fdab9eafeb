package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/yngpu/hfjob/pkg/config"
	"github.com/yngpu/hfjob/pkg/errors"
	"github.com/yngpu/hfjob/pkg/k8s/client"
	"github.com/yngpu/hfjob/pkg/k8s/job"
	"github.com/yngpu/hfjob/pkg/manifest"
	"github.com/yngpu/hfjob/pkg/serializer"
)

// defaultOutput is used when neither the config file nor --output names one.
const defaultOutput = "job.yaml"

const hfTokenRequired = "HF_TOKEN is required. Either set it as an environment variable or pass it as a command line argument."

// valueFlags returns the flags that feed template values. The config key is
// the flag name with dashes replaced by underscores.
func valueFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "image", Usage: "Container image for the training pod"},
		&cli.StringFlag{Name: "command", Usage: "Container command, split with shell word rules"},
		&cli.StringFlag{
			Name:    "hf-token",
			Usage:   "Hugging Face access token",
			Sources: cli.EnvVars("HF_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   fmt.Sprintf("Output file path, - for stdout (default: %s)", defaultOutput),
		},
		&cli.StringFlag{Name: "job-name", Usage: "Job name suffix (default: job-<random>)"},
		&cli.StringFlag{Name: "namespace", Aliases: []string{"n"}, Usage: fmt.Sprintf("Job namespace (default: %s)", manifest.DefaultNamespace)},
		&cli.StringFlag{Name: "k8s-user-name", Usage: "Cluster user name, used as Job name prefix and label"},
		&cli.IntFlag{Name: "k8s-user-id", Usage: "UID the pod runs as"},
		&cli.IntFlag{Name: "k8s-user-group", Usage: "GID the pod runs as, also used as fsGroup"},
		&cli.StringFlag{Name: "k8s-user-home", Usage: "Sub-path of the home volume mounted at /home"},
		&cli.StringFlag{Name: "hf-local-storage", Usage: "Hugging Face storage directory passed to the pod"},
		&cli.StringFlag{Name: "k8s-gpu-pvc", Usage: "PersistentVolumeClaim mounted as the home volume"},
		&cli.StringFlag{Name: "gpu-type", Usage: "GPU product label to schedule on (e.g., NVIDIA-A100-SXM4-80GB)"},
		&cli.IntFlag{Name: "gpu-low", Usage: "Requested GPU count"},
		&cli.IntFlag{Name: "gpu-high", Usage: "GPU count limit"},
		&cli.StringFlag{Name: "cpu-low", Usage: "Requested CPU (e.g., 4 or 500m)"},
		&cli.StringFlag{Name: "cpu-high", Usage: "CPU limit"},
		&cli.StringFlag{Name: "memory-low", Usage: "Requested memory (e.g., 32Gi)"},
		&cli.StringFlag{Name: "memory-high", Usage: "Memory limit"},
	}
}

func generateCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML file with option values; flags take precedence",
			Sources: cli.EnvVars("CONFIG_PATH"),
		},
	}
	flags = append(flags, valueFlags()...)
	flags = append(flags,
		newFormatFlag(),
		&cli.BoolFlag{
			Name:  "run",
			Usage: "Apply the generated Job to the cluster",
		},
		&cli.StringFlag{
			Name:  "runner",
			Value: job.RunnerKubectl,
			Usage: fmt.Sprintf("How --run applies the Job (%v)", job.SupportedRunners()),
		},
		&cli.StringFlag{
			Name:    "kubectl",
			Value:   job.DefaultKubectl,
			Usage:   "kubectl binary used by the kubectl runner",
			Sources: cli.EnvVars("HFJOB_KUBECTL"),
			Hidden:  true,
		},
		newKubeconfigFlag(),
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "Wait up to this long for the Job to finish (api runner only)",
		},
	)

	return &cli.Command{
		Name:                  "generate",
		Aliases:               []string{"gen"},
		EnableShellCompletion: true,
		Usage:                 "Generate a Kubernetes Job manifest for a GPU training workload",
		Description: `Renders the GPU training Job template from a config file, environment
and flags, and writes it to a file (job.yaml by default).

Values are resolved in increasing priority: config file, environment
(HF_TOKEN, CONFIG_PATH), command line flags. Every template placeholder
must be resolved; missing values are reported by name.

# Examples

Generate from a config file:
  hfjob generate --config job-config.yaml

Override the image and print to stdout:
  hfjob generate -c job-config.yaml --image pytorch/pytorch:2.4.0-cuda12.1-cudnn9-runtime -o -

Generate and apply with kubectl:
  hfjob generate -c job-config.yaml --run

Submit through the API and wait for completion:
  hfjob generate -c job-config.yaml --run --runner api --wait 30m`,
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}

			runner := cmd.String("runner")
			if !isSupportedRunner(runner) {
				return errors.New(errors.ErrCodeInvalidRequest,
					fmt.Sprintf("unknown runner: %q, valid runners are: %v", runner, job.SupportedRunners()))
			}

			fileValues, err := config.LoadFile(cmd.String("config"))
			if err != nil {
				return err
			}
			values := config.Merge(fileValues, flagValues(cmd))

			if err := values.Require(config.KeyHFToken, hfTokenRequired); err != nil {
				return err
			}
			config.WarnUnknownKeys(values)

			m, err := manifest.Render(values)
			if err != nil {
				return err
			}

			output := defaultOutput
			if values.Has(config.KeyOutput) {
				output = values.String(config.KeyOutput)
			}

			if isStdout(output) {
				if cmd.Bool("run") && runner == job.RunnerKubectl {
					return errors.New(errors.ErrCodeInvalidRequest,
						"--run with the kubectl runner needs a file output")
				}
				if err := serializer.NewWriter(outFormat, stdout(cmd)).Serialize(ctx, m); err != nil {
					return err
				}
			} else {
				path, err := serializer.WriteFile(ctx, outFormat, output, m)
				if err != nil {
					return err
				}
				output = path
				fmt.Fprintf(stdout(cmd), "Generated Kubernetes job %s at: %s\n", strings.ToUpper(string(outFormat)), path)
			}

			if !cmd.Bool("run") {
				return nil
			}
			return applyJob(ctx, cmd, runner, output, m)
		},
	}
}

// flagValues returns the explicitly set value flags keyed by config key.
// Flags that were not set are absent so they do not override the config file.
func flagValues(cmd *cli.Command) config.Values {
	values := config.Values{}
	for _, f := range cmd.Flags {
		flagName := f.Names()[0]
		key := flagKey(flagName)
		if !isKnownKey(key) || !cmd.IsSet(flagName) {
			continue
		}
		if _, ok := f.(*cli.IntFlag); ok {
			values[key] = cmd.Int(flagName)
			continue
		}
		values[key] = cmd.String(flagName)
	}
	return values
}

// applyJob applies the rendered manifest with the selected runner.
func applyJob(ctx context.Context, cmd *cli.Command, runner, path string, m *manifest.Manifest) error {
	kubeconfig := cmd.String("kubeconfig")

	slog.Info("applying job",
		slog.String("runner", runner),
		slog.String("namespace", m.Namespace()),
		slog.String("name", m.Name()),
	)

	if runner == job.RunnerKubectl {
		r := &job.KubectlRunner{
			Binary:     cmd.String("kubectl"),
			Kubeconfig: kubeconfig,
			Stdout:     stdout(cmd),
			Stderr:     stderr(cmd),
		}
		return r.Apply(ctx, path)
	}

	clientset, _, err := client.BuildKubeClient(kubeconfig)
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnavailable, "failed to create kubernetes client", err)
	}

	s := job.NewSubmitter(clientset)
	created, err := s.Submit(ctx, m.Job())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "job.batch/%s created\n", created.Name)

	timeout := cmd.Duration("wait")
	if timeout <= 0 {
		return nil
	}

	start := time.Now()
	if err := s.Wait(ctx, created.Namespace, created.Name, timeout); err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "job.batch/%s complete after %s\n", created.Name, time.Since(start).Round(time.Second))
	return nil
}

func isSupportedRunner(runner string) bool {
	for _, r := range job.SupportedRunners() {
		if r == runner {
			return true
		}
	}
	return false
}
