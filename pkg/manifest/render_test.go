package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/yngpu/hfjob/pkg/config"
	"github.com/yngpu/hfjob/pkg/errors"
)

func fixedName() string { return "finetune" }

func completeValues() config.Values {
	return config.Values{
		"hf_token":         "hf_secret",
		"output":           "job.yaml",
		"k8s_user_name":    "alice",
		"k8s_user_id":      1000,
		"k8s_user_group":   2000,
		"k8s_gpu_pvc":      "alice-home",
		"hf_local_storage": "hf",
		"image":            "img:1",
		"gpu_low":          1,
		"gpu_high":         2,
		"cpu_low":          4,
		"cpu_high":         8,
		"memory_low":       "32Gi",
		"memory_high":      "64Gi",
	}
}

func TestRender_Complete(t *testing.T) {
	m, err := Render(completeValues(), WithJobNameGenerator(fixedName))
	require.NoError(t, err)

	data, err := m.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "${", "no placeholder may survive rendering")

	assert.Equal(t, "alice-finetune", m.Name())
	assert.Equal(t, DefaultNamespace, m.Namespace())

	job := m.Job()
	require.NotNil(t, job)
	assert.Equal(t, "batch/v1", job.APIVersion)
	assert.Equal(t, "Job", job.Kind)
	assert.Equal(t, "alice", job.Labels[LabelUser])
	assert.EqualValues(t, 0, *job.Spec.BackoffLimit)
	assert.EqualValues(t, 60, *job.Spec.TTLSecondsAfterFinished)

	pod := job.Spec.Template.Spec
	assert.Equal(t, corev1.RestartPolicyNever, pod.RestartPolicy)
	assert.Equal(t, "true", pod.NodeSelector[NodeSelectorPresent])
	require.NotNil(t, pod.SecurityContext)
	assert.EqualValues(t, 1000, *pod.SecurityContext.RunAsUser)
	assert.EqualValues(t, 2000, *pod.SecurityContext.RunAsGroup)
	assert.EqualValues(t, 2000, *pod.SecurityContext.FSGroup)

	require.Len(t, pod.Containers, 1)
	c := pod.Containers[0]
	assert.Equal(t, ContainerName, c.Name)
	assert.Equal(t, "img:1", c.Image)
	assert.Equal(t, corev1.PullIfNotPresent, c.ImagePullPolicy)
	assert.Empty(t, c.Command)

	env := map[string]string{}
	for _, e := range c.Env {
		env[e.Name] = e.Value
	}
	assert.Equal(t, map[string]string{"HOME": "/home", "HF_LOCAL_STORAGE": "hf", "HF_TOKEN": "hf_secret"}, env)

	assert.True(t, c.Resources.Requests.Cpu().Equal(resource.MustParse("4")))
	assert.True(t, c.Resources.Limits.Memory().Equal(resource.MustParse("64Gi")))
	gpu := c.Resources.Limits[corev1.ResourceName(ResourceGPU)]
	assert.True(t, gpu.Equal(resource.MustParse("2")))

	require.Len(t, pod.Volumes, 2)
	assert.Equal(t, corev1.StorageMediumMemory, pod.Volumes[0].EmptyDir.Medium)
	assert.Equal(t, "alice-home", pod.Volumes[1].PersistentVolumeClaim.ClaimName)
}

func TestRender_PreservesTemplateKeyOrder(t *testing.T) {
	m, err := Render(completeValues(), WithJobNameGenerator(fixedName))
	require.NoError(t, err)

	data, err := m.YAML()
	require.NoError(t, err)
	out := string(data)

	order := []string{"apiVersion:", "kind:", "metadata:", "spec:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(out, key)
		require.GreaterOrEqual(t, idx, 0, "missing %s", key)
		assert.Greater(t, idx, last, "%s out of order", key)
		last = idx
	}
}

func TestRender_GPUType(t *testing.T) {
	t.Run("present when set", func(t *testing.T) {
		v := completeValues()
		v["gpu_type"] = "NVIDIA-A100-SXM4-80GB"

		m, err := Render(v, WithJobNameGenerator(fixedName))
		require.NoError(t, err)
		assert.Equal(t, "NVIDIA-A100-SXM4-80GB", m.Job().Spec.Template.Spec.NodeSelector[NodeSelectorProduct])
	})

	t.Run("absent when omitted", func(t *testing.T) {
		m, err := Render(completeValues(), WithJobNameGenerator(fixedName))
		require.NoError(t, err)
		_, ok := m.Job().Spec.Template.Spec.NodeSelector[NodeSelectorProduct]
		assert.False(t, ok)

		data, err := m.YAML()
		require.NoError(t, err)
		assert.NotContains(t, string(data), NodeSelectorProduct)
	})

	t.Run("absent when empty", func(t *testing.T) {
		v := completeValues()
		v["gpu_type"] = ""
		m, err := Render(v, WithJobNameGenerator(fixedName))
		require.NoError(t, err)
		_, ok := m.Job().Spec.Template.Spec.NodeSelector[NodeSelectorProduct]
		assert.False(t, ok)
	})
}

func TestRender_Command(t *testing.T) {
	v := completeValues()
	v["command"] = `python3 train.py --msg "hello world" --home ${HOME}`

	m, err := Render(v, WithJobNameGenerator(fixedName))
	require.NoError(t, err)

	c := m.Job().Spec.Template.Spec.Containers[0]
	assert.Equal(t, []string{"python3", "train.py", "--msg", "hello world", "--home", "${HOME}"}, c.Command)

	container := lookup(m.Node(), "spec", "template", "spec", "containers").Content[0]
	keys := []string{}
	for i := 0; i < len(container.Content); i += 2 {
		keys = append(keys, container.Content[i].Value)
	}
	assert.Equal(t, []string{"name", "image", "command", "env", "volumeMounts", "resources", "imagePullPolicy"}, keys)
}

func TestRender_InvalidCommand(t *testing.T) {
	v := completeValues()
	v["command"] = `python3 "unterminated`

	_, err := Render(v, WithJobNameGenerator(fixedName))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
}

func TestRender_HomeSubPath(t *testing.T) {
	v := completeValues()
	v["k8s_user_home"] = "users/alice"

	m, err := Render(v, WithJobNameGenerator(fixedName))
	require.NoError(t, err)

	mounts := m.Job().Spec.Template.Spec.Containers[0].VolumeMounts
	require.Len(t, mounts, 2)
	assert.Equal(t, "users/alice", mounts[1].SubPath)
	assert.Empty(t, mounts[0].SubPath)
}

func TestRender_MissingPlaceholder(t *testing.T) {
	v := completeValues()
	delete(v, "image")
	v["k8s_gpu_pvc"] = nil

	_, err := Render(v, WithJobNameGenerator(fixedName))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
	assert.Contains(t, err.Error(), "image, k8s_gpu_pvc")
}

func TestRender_Defaults(t *testing.T) {
	v := completeValues()
	v["namespace"] = "team-a"

	m, err := Render(v)
	require.NoError(t, err)

	assert.Equal(t, "team-a", m.Namespace())
	assert.True(t, strings.HasPrefix(m.Name(), "alice-job-"), "got %q", m.Name())
	assert.Len(t, strings.TrimPrefix(m.Name(), "alice-job-"), jobNameIDLength)
}

func TestRender_Validation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"non numeric user id", "k8s_user_id", "alice"},
		{"bad quantity", "memory_low", "lots"},
		{"bad image", "image", "Not A Valid:image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := completeValues()
			v[tt.key] = tt.value

			_, err := Render(v, WithJobNameGenerator(fixedName))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest), "got %v", err)
		})
	}

	t.Run("skipped on request", func(t *testing.T) {
		v := completeValues()
		v["memory_low"] = "lots"

		m, err := Render(v, WithJobNameGenerator(fixedName), WithoutValidation())
		require.NoError(t, err)
		assert.Nil(t, m.Job())
	})
}

func TestRender_Metrics(t *testing.T) {
	before := testutil.ToFloat64(renderTotal.WithLabelValues("error"))

	_, err := Render(config.Values{}, WithJobNameGenerator(fixedName))
	require.Error(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(renderTotal.WithLabelValues("error")))
}

func TestRender_TemplateIsFresh(t *testing.T) {
	v := completeValues()
	v["gpu_type"] = "H100"
	_, err := Render(v, WithJobNameGenerator(fixedName))
	require.NoError(t, err)

	sel := lookup(Template(), "spec", "template", "spec", "nodeSelector")
	require.NotNil(t, sel)
	assert.Len(t, sel.Content, 2, "injection must not leak into later templates")
}

func TestManifest_MarshalJSON(t *testing.T) {
	m, err := Render(completeValues(), WithJobNameGenerator(fixedName))
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Job", out["kind"])
	assert.Equal(t, "alice-finetune", out["metadata"].(map[string]any)["name"])
}

func TestManifest_MarshalYAML(t *testing.T) {
	m, err := Render(completeValues(), WithJobNameGenerator(fixedName))
	require.NoError(t, err)

	data, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "apiVersion: batch/v1\n"), "got %q", string(data))
}

func TestSubstitute(t *testing.T) {
	text := "a: ${x}\nb: ${y}-${x}\nc: ${z}\n"
	got := Substitute(text, config.Values{"x": 1, "y": "two", "z": nil})
	assert.Equal(t, "a: 1\nb: two-1\nc: ${z}\n", got)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "b_2"}, Placeholders("${b_2} ${a} ${a} $notone ${1bad}"))

	base, err := encode(Template())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cpu_high", "cpu_low", "gpu_high", "gpu_low", "hf_local_storage", "hf_token",
		"image", "job_name", "k8s_gpu_pvc", "k8s_user_group", "k8s_user_id", "k8s_user_name",
		"memory_high", "memory_low", "namespace",
	}, Placeholders(string(base)))
}
