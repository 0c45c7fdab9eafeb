// Package config loads and merges the job generator configuration.
//
// Configuration is a flat mapping from option name (snake_case, matching the
// template placeholders) to a scalar value. It is assembled from, in
// increasing priority:
//
//  1. a YAML file (--config, or CONFIG_PATH)
//  2. environment-backed flag defaults (HF_TOKEN)
//  3. explicit command-line flags
//
// A nil value means "not provided" and never overrides a lower layer.
//
// Example config file:
//
//	hf_token: hf_xxx
//	k8s_user_name: alice
//	k8s_user_id: 1000
//	k8s_user_group: 1000
//	k8s_gpu_pvc: alice-home
//	hf_local_storage: hf
//	image: nvcr.io/nvidia/pytorch:24.05-py3
//	job_name: finetune
//	gpu_type: NVIDIA-A100-SXM4-80GB
//	gpu_low: 1
//	gpu_high: 1
//	cpu_low: 4
//	cpu_high: 8
//	memory_low: 32Gi
//	memory_high: 64Gi
//	output: jobs/finetune.yaml
package config
