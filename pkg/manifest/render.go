package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"
	batchv1 "k8s.io/api/batch/v1"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/yngpu/hfjob/pkg/config"
	"github.com/yngpu/hfjob/pkg/errors"
)

// placeholderPattern matches ${name} tokens.
var placeholderPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// jobNameIDLength is the number of UUID characters in a generated job name.
const jobNameIDLength = 8

// Option configures Render.
type Option func(*renderer)

// WithJobNameGenerator sets the function used for job_name when the
// configuration does not provide one.
func WithJobNameGenerator(fn func() string) Option {
	return func(r *renderer) {
		r.jobName = fn
	}
}

// WithoutValidation skips decoding the rendered manifest into the Job API type.
// Manifest.Job returns nil for manifests rendered this way.
func WithoutValidation() Option {
	return func(r *renderer) {
		r.validate = false
	}
}

type renderer struct {
	jobName  func() string
	validate bool
}

// DefaultJobName returns "job-" followed by a short random identifier.
func DefaultJobName() string {
	return "job-" + uuid.NewString()[:jobNameIDLength]
}

// Manifest is a rendered Job. Key order follows the template.
type Manifest struct {
	node *yaml.Node
	job  *batchv1.Job
}

// Node returns the rendered document node.
func (m *Manifest) Node() *yaml.Node {
	return m.node
}

// Job returns a copy of the typed Job, or nil when validation was skipped.
func (m *Manifest) Job() *batchv1.Job {
	if m.job == nil {
		return nil
	}
	return m.job.DeepCopy()
}

// Name returns metadata.name.
func (m *Manifest) Name() string {
	if n := lookup(m.node, "metadata", "name"); n != nil {
		return n.Value
	}
	return ""
}

// Namespace returns metadata.namespace.
func (m *Manifest) Namespace() string {
	if n := lookup(m.node, "metadata", "namespace"); n != nil {
		return n.Value
	}
	return ""
}

// MarshalYAML implements yaml.Marshaler, preserving template key order.
func (m *Manifest) MarshalYAML() (any, error) {
	return m.node.Content[0], nil
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var v any
	if err := m.node.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return json.Marshal(v)
}

// YAML returns the manifest as YAML text.
func (m *Manifest) YAML() ([]byte, error) {
	return encode(m.node)
}

// Render fills the Job template with values.
//
// Optional fields are injected first: gpu_type adds the GPU product node
// selector, command sets the container argv (shell-word split) and
// k8s_user_home mounts that sub directory of the home claim. The template is
// then serialized, every ${key} with a non-nil value is replaced by the
// value's string form, and the result is parsed back.
//
// Any template placeholder left unresolved fails the render with an
// INVALID_REQUEST error naming the missing keys.
func Render(values config.Values, opts ...Option) (*Manifest, error) {
	start := time.Now()

	m, err := render(values, opts...)

	renderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		renderTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	renderTotal.WithLabelValues("success").Inc()
	return m, nil
}

func render(values config.Values, opts ...Option) (*Manifest, error) {
	r := &renderer{
		jobName:  DefaultJobName,
		validate: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	vals := withDefaults(values, r.jobName)

	tmpl := newJobTemplate()
	base, err := encode(tmpl.doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to serialize template", err)
	}
	required := Placeholders(string(base))

	if gpuType, ok := vals.Lookup(config.KeyGPUType); ok && gpuType != "" {
		tmpl.setGPUProduct(gpuType)
	}
	if command, ok := vals.Lookup(config.KeyCommand); ok && command != "" {
		argv, err := shellwords.Parse(command)
		if err != nil {
			return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest, "invalid command", err,
				map[string]any{"command": command})
		}
		if len(argv) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidRequest, "command is empty")
		}
		tmpl.setCommand(argv)
	}
	if home, ok := vals.Lookup(config.KeyK8sUserHome); ok && home != "" {
		tmpl.setHomeSubPath(home)
	}

	text, err := encode(tmpl.doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to serialize template", err)
	}

	rendered := Substitute(string(text), vals)

	if missing := unresolved(rendered, required); len(missing) > 0 {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("missing values for placeholders: %s", strings.Join(missing, ", ")),
			nil, map[string]any{"keys": missing})
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(rendered), &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "rendered manifest is not valid YAML", err)
	}

	m := &Manifest{node: &doc}
	if r.validate {
		job, err := validate(m)
		if err != nil {
			return nil, err
		}
		m.job = job
	}

	slog.Debug("manifest rendered",
		"name", m.Name(),
		"namespace", m.Namespace(),
		"placeholders", len(required),
	)

	return m, nil
}

// withDefaults fills namespace and job_name when they are not provided.
func withDefaults(values config.Values, jobName func() string) config.Values {
	out := values.Clone()
	if !out.Has(config.KeyNamespace) {
		out[config.KeyNamespace] = DefaultNamespace
	}
	if !out.Has(config.KeyJobName) {
		out[config.KeyJobName] = jobName()
	}
	return out
}

// Substitute replaces every ${key} in text with the string form of the
// matching value. Keys with nil values are skipped.
func Substitute(text string, values config.Values) string {
	for _, key := range values.Keys() {
		val, _ := values.Lookup(key)
		text = strings.ReplaceAll(text, "${"+key+"}", val)
	}
	return text
}

// Placeholders returns the distinct placeholder names in text, sorted.
func Placeholders(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// unresolved returns the names in required still present in text.
// Placeholders that only appear in user-supplied fields are not considered.
func unresolved(text string, required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.Contains(text, "${"+name+"}") {
			missing = append(missing, name)
		}
	}
	return missing
}

// validate decodes the manifest strictly into the Job API type and checks
// the container image reference.
func validate(m *Manifest) (*batchv1.Job, error) {
	data, err := m.YAML()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to serialize manifest", err)
	}

	var job batchv1.Job
	if err := sigsyaml.UnmarshalStrict(data, &job); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "manifest is not a valid batch/v1 Job", err)
	}

	if len(job.Spec.Template.Spec.Containers) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "manifest has no containers")
	}
	image := job.Spec.Template.Spec.Containers[0].Image
	if _, err := reference.ParseNormalizedNamed(image); err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid image reference %q", image), err, map[string]any{"image": image})
	}

	return &job, nil
}

func encode(n *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
