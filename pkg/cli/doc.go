// Package cli implements the command-line interface for the hfjob tool.
//
// # Overview
//
// hfjob turns a small set of options into a Kubernetes batch/v1 Job that runs
// a Hugging Face training workload on a GPU node, and provides the launcher
// that runs inside that Job.
//
// # Commands
//
// generate - Render the GPU training Job manifest:
//
//	hfjob generate --config job-config.yaml
//	hfjob generate -c job-config.yaml --image img:1 --output jobs/alice.yaml
//	hfjob generate -c job-config.yaml -o - --format json
//	hfjob generate -c job-config.yaml --run
//	hfjob generate -c job-config.yaml --run --runner api --wait 30m
//
// Values come from the config file (--config or CONFIG_PATH), the
// environment (HF_TOKEN) and flags, in increasing priority. The manifest is
// written to job.yaml unless the config file or --output names another path;
// parent directories are created. With --run the Job is applied using
// kubectl (default) or the Kubernetes API.
//
// train - Launch fine-tuning inside the pod:
//
//	hfjob train
//	hfjob train --dry-run
//	hfjob train --trainer "python3 /workspace/train.py"
//
// # Global Flags
//
//	--debug          Enable debug logging
//	--log-json       Output logs in JSON format
//	--metrics-file   Write Prometheus metrics to a text file on exit
//	--help, -h       Show command help
//	--version, -v    Show version information
//
// # Environment Variables
//
//	CONFIG_PATH         Config file for generate
//	HF_TOKEN            Hugging Face access token
//	CACHE_DIR           Base directory for training storage
//	MOUNT_PATH          Fallback base directory when CACHE_DIR is unset
//	HF_LOCAL_STORAGE    Storage directory relative to the base directory
//	HFJOB_TRAINER       Trainer command for train
//	KUBECONFIG          Path to kubeconfig file
//	LOG_LEVEL           Set logging verbosity (debug, info, warn, error)
//
// A .env file in the working directory is loaded first; variables already
// set in the environment win.
//
// # Exit Codes
//
//	0  Success
//	1  General error
//	2  Usage error (missing or invalid values, config file not found)
//
// When kubectl apply fails, its exit status is returned unchanged.
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/yngpu/hfjob/pkg/cli.version=1.0.0'"
package cli
