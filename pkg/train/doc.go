// Package train launches BERT fine-tuning on GLUE MRPC inside a Job pod.
//
// The launcher resolves its storage from the environment: CACHE_DIR (or
// MOUNT_PATH) plus HF_LOCAL_STORAGE gives the storage root, under which
// models, logs, datasets and cache directories are created. A fixed Plan
// is written to logs/plan.json and handed to an external trainer process:
//
//	env, err := train.EnvFromOS()
//	plan := train.NewPlan(env)
//	report, err := train.Run(ctx, plan, train.NewProcessTrainer(""))
//
// The trainer receives HFJOB_PLAN, HF_TOKEN and HF_HOME in its environment.
// When it leaves logs/predictions.json behind, Run scores the predictions
// with ComputeMetrics (accuracy and binary F1).
package train
