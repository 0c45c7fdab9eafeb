package train

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yngpu/hfjob/pkg/errors"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestEnvFrom(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantRoot string
		wantErr  string
	}{
		{
			name:     "cache dir",
			env:      map[string]string{EnvHFToken: "t", EnvCacheDir: "/cache", EnvHFLocalStorage: "hf"},
			wantRoot: "/cache/hf",
		},
		{
			name:     "mount path fallback",
			env:      map[string]string{EnvHFToken: "t", EnvMountPath: "/mnt", EnvHFLocalStorage: "hf"},
			wantRoot: "/mnt/hf",
		},
		{
			name:     "cache dir wins over mount path",
			env:      map[string]string{EnvHFToken: "t", EnvCacheDir: "/cache", EnvMountPath: "/mnt", EnvHFLocalStorage: "hf"},
			wantRoot: "/cache/hf",
		},
		{
			name:    "missing token",
			env:     map[string]string{EnvCacheDir: "/cache", EnvHFLocalStorage: "hf"},
			wantErr: "HF_TOKEN is required",
		},
		{
			name:    "missing base dir",
			env:     map[string]string{EnvHFToken: "t", EnvHFLocalStorage: "hf"},
			wantErr: "CACHE_DIR or MOUNT_PATH",
		},
		{
			name:    "missing storage",
			env:     map[string]string{EnvHFToken: "t", EnvCacheDir: "/cache"},
			wantErr: "HF_LOCAL_STORAGE is required",
		},
		{
			name:    "absolute storage",
			env:     map[string]string{EnvHFToken: "t", EnvCacheDir: "/cache", EnvHFLocalStorage: "/abs"},
			wantErr: "must be relative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := EnvFrom(mapLookup(tt.env))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoot, env.Root())
			assert.Equal(t, "t", env.Token)
		})
	}
}

func TestLayout_Ensure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "hf", "storage")
	l := NewLayout(root)

	require.NoError(t, l.Ensure())
	require.NoError(t, l.Ensure(), "Ensure must be idempotent")

	for _, name := range []string{"models", "logs", "datasets", "cache"} {
		info, err := os.Stat(filepath.Join(root, name))
		require.NoError(t, err, name)
		assert.True(t, info.IsDir(), name)
	}
}

func TestNewPlan(t *testing.T) {
	p := NewPlan(&Env{Token: "secret", BaseDir: "/cache", LocalStorage: "hf"})

	assert.Equal(t, "/cache/hf/logs", p.Arguments.OutputDir)
	assert.Equal(t, DefaultMaxSteps, p.Arguments.MaxSteps)
	assert.Equal(t, EvalStrategyEpoch, p.Arguments.EvalStrategy)
	assert.InDelta(t, 5e-5, p.Arguments.LearningRate, 1e-12)
	assert.False(t, p.Arguments.NoCUDA)
	assert.True(t, p.Arguments.DataloaderPinMemory)
	assert.Equal(t, "bert-base-uncased", p.Model.Checkpoint)
	assert.Equal(t, 2, p.Model.NumLabels)
	assert.Equal(t, "/cache/hf/models", p.Model.CacheDir)
	assert.Equal(t, []string{"sentence1", "sentence2"}, p.Dataset.TextColumns)
	assert.Equal(t, "/cache/hf/datasets", p.Dataset.CacheDir)
	assert.Equal(t, "/cache/hf/cache", p.Metric.CacheDir)
}

func TestPlan_WriteOmitsToken(t *testing.T) {
	p := NewPlan(&Env{Token: "hf_secret", BaseDir: t.TempDir(), LocalStorage: "hf"})
	require.NoError(t, p.Layout.Ensure())

	path, err := p.Write()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Layout.Logs, PlanFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hf_secret")

	var decoded Plan
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.Arguments, decoded.Arguments)
	assert.Equal(t, p.Layout, decoded.Layout)
	assert.Equal(t, KindTrainingPlan, decoded.Kind)
	assert.Equal(t, "trainingplan.hfjob.yngpu.io/v1alpha1", decoded.APIVersion)
}

func TestComputeMetrics(t *testing.T) {
	tests := []struct {
		name     string
		logits   [][]float64
		labels   []int
		wantAcc  float64
		wantF1   float64
		wantCode errors.ErrorCode
	}{
		{
			name:    "perfect",
			logits:  [][]float64{{0.1, 0.9}, {0.8, 0.2}},
			labels:  []int{1, 0},
			wantAcc: 1,
			wantF1:  1,
		},
		{
			// preds 1,1,0,0 vs labels 1,0,1,0: tp=1 fp=1 fn=1
			name:    "mixed",
			logits:  [][]float64{{0, 1}, {0, 1}, {1, 0}, {1, 0}},
			labels:  []int{1, 0, 1, 0},
			wantAcc: 0.5,
			wantF1:  0.5,
		},
		{
			// preds 1,1,1 vs labels 1,1,0: precision 2/3 recall 1
			name:    "false positive",
			logits:  [][]float64{{0, 1}, {0, 1}, {0, 1}},
			labels:  []int{1, 1, 0},
			wantAcc: 2.0 / 3.0,
			wantF1:  0.8,
		},
		{
			name:    "no positives predicted",
			logits:  [][]float64{{1, 0}, {1, 0}},
			labels:  []int{1, 0},
			wantAcc: 0.5,
			wantF1:  0,
		},
		{
			name:    "ties go to first class",
			logits:  [][]float64{{0.5, 0.5}},
			labels:  []int{0},
			wantAcc: 1,
			wantF1:  0,
		},
		{
			name:     "length mismatch",
			logits:   [][]float64{{0, 1}},
			labels:   []int{1, 0},
			wantCode: errors.ErrCodeInvalidRequest,
		},
		{
			name:     "no examples",
			wantCode: errors.ErrCodeInvalidRequest,
		},
		{
			name:     "empty row",
			logits:   [][]float64{{}},
			labels:   []int{0},
			wantCode: errors.ErrCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ComputeMetrics(tt.logits, tt.labels)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantAcc, m.Accuracy, 1e-9)
			assert.InDelta(t, tt.wantF1, m.F1, 1e-9)
			assert.Equal(t, len(tt.labels), m.Examples)
		})
	}
}

// fakeTrainer writes a trainer script that records its environment and
// optionally leaves predictions next to the plan.
func fakeTrainer(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	bin := filepath.Join(t.TempDir(), "trainer.sh")
	script := "#!/bin/sh\nlogs=$(dirname \"$HFJOB_PLAN\")\n" +
		"echo \"$HF_TOKEN $HF_HOME\" > \"$logs/env.txt\"\n" + body
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin
}

func testPlan(t *testing.T) *Plan {
	t.Helper()
	return NewPlan(&Env{Token: "hf_abc", BaseDir: t.TempDir(), LocalStorage: "hf"})
}

func TestRun_WithPredictions(t *testing.T) {
	bin := fakeTrainer(t,
		`echo '{"logits":[[0.2,0.8],[0.9,0.1],[0.3,0.7]],"labels":[1,0,0]}' > "$logs/predictions.json"`+"\n")
	plan := testPlan(t)
	trainer := &ProcessTrainer{Command: bin, Stdout: &strings.Builder{}, Stderr: &strings.Builder{}}

	before := testutil.ToFloat64(runTotal.WithLabelValues("success"))

	report, err := Run(context.Background(), plan, trainer)
	require.NoError(t, err)
	require.NotNil(t, report.Metrics)
	assert.InDelta(t, 2.0/3.0, report.Metrics.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.Metrics.F1, 1e-9)
	assert.Equal(t, 3, report.Metrics.Examples)
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(evalAccuracy), 1e-9)
	assert.Equal(t, before+1, testutil.ToFloat64(runTotal.WithLabelValues("success")))

	env, err := os.ReadFile(filepath.Join(plan.Layout.Logs, "env.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hf_abc "+plan.Layout.Cache, strings.TrimSpace(string(env)))

	_, err = os.Stat(plan.PlanPath())
	assert.NoError(t, err, "plan should be written")
}

func TestRun_WithoutPredictions(t *testing.T) {
	bin := fakeTrainer(t, "exit 0\n")
	report, err := Run(context.Background(), testPlan(t), &ProcessTrainer{Command: bin})
	require.NoError(t, err)
	assert.Nil(t, report.Metrics)
}

func TestRun_StalePredictionsIgnored(t *testing.T) {
	plan := testPlan(t)

	first := fakeTrainer(t, `echo '{"logits":[[0.2,0.8]],"labels":[1]}' > "$logs/predictions.json"`+"\n")
	report, err := Run(context.Background(), plan, &ProcessTrainer{Command: first})
	require.NoError(t, err)
	require.NotNil(t, report.Metrics)

	second := fakeTrainer(t, "exit 0\n")
	report, err = Run(context.Background(), plan, &ProcessTrainer{Command: second})
	require.NoError(t, err)
	assert.Nil(t, report.Metrics, "metrics from an earlier run must not be reported")

	_, err = os.Stat(plan.PredictionsPath())
	assert.True(t, os.IsNotExist(err), "stale predictions should be removed")
}

func TestRun_TrainerFailure(t *testing.T) {
	bin := fakeTrainer(t, "exit 7\n")
	before := testutil.ToFloat64(runTotal.WithLabelValues("error"))

	_, err := Run(context.Background(), testPlan(t), &ProcessTrainer{Command: bin, Stderr: &strings.Builder{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trainer failed")

	var se *errors.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 7, se.Context["status"])
	assert.Equal(t, before+1, testutil.ToFloat64(runTotal.WithLabelValues("error")))
}

func TestRun_InvalidPredictions(t *testing.T) {
	bin := fakeTrainer(t, `echo 'not json' > "$logs/predictions.json"`+"\n")
	_, err := Run(context.Background(), testPlan(t), &ProcessTrainer{Command: bin})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid predictions file")
}

func TestProcessTrainer_InvalidCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{name: "unterminated quote", command: `python3 "-m`},
		{name: "blank", command: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&ProcessTrainer{Command: tt.command}).Train(context.Background(), testPlan(t))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest), "got %v", err)
		})
	}
}

func TestNewProcessTrainer_Default(t *testing.T) {
	assert.Equal(t, DefaultTrainerCommand, NewProcessTrainer("").Command)
	assert.Equal(t, "my-trainer", NewProcessTrainer("my-trainer").Command)
}
