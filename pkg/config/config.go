package config

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yngpu/hfjob/pkg/errors"
)

// Option names. They double as template placeholder names.
const (
	KeyHFToken        = "hf_token"
	KeyImage          = "image"
	KeyCommand        = "command"
	KeyOutput         = "output"
	KeyJobName        = "job_name"
	KeyNamespace      = "namespace"
	KeyK8sUserName    = "k8s_user_name"
	KeyK8sUserID      = "k8s_user_id"
	KeyK8sUserGroup   = "k8s_user_group"
	KeyK8sUserHome    = "k8s_user_home"
	KeyHFLocalStorage = "hf_local_storage"
	KeyK8sGPUPVC      = "k8s_gpu_pvc"
	KeyGPUType        = "gpu_type"
	KeyGPULow         = "gpu_low"
	KeyGPUHigh        = "gpu_high"
	KeyCPULow         = "cpu_low"
	KeyCPUHigh        = "cpu_high"
	KeyMemoryLow      = "memory_low"
	KeyMemoryHigh     = "memory_high"
)

// KnownKeys lists every option the generator understands.
var KnownKeys = []string{
	KeyHFToken, KeyImage, KeyCommand, KeyOutput, KeyJobName, KeyNamespace,
	KeyK8sUserName, KeyK8sUserID, KeyK8sUserGroup, KeyK8sUserHome,
	KeyHFLocalStorage, KeyK8sGPUPVC, KeyGPUType,
	KeyGPULow, KeyGPUHigh, KeyCPULow, KeyCPUHigh, KeyMemoryLow, KeyMemoryHigh,
}

// maxSuggestionDistance bounds how far a typo may be from a known key.
const maxSuggestionDistance = 3

// Values is a flat option mapping.
type Values map[string]any

// Lookup returns the string form of key and whether it was provided.
// Absent keys and nil values are both reported as not provided.
func (v Values) Lookup(key string) (string, bool) {
	raw, ok := v[key]
	if !ok || raw == nil {
		return "", false
	}
	return fmt.Sprint(raw), true
}

// String returns the string form of key, or "" when not provided.
func (v Values) String(key string) string {
	s, _ := v.Lookup(key)
	return s
}

// Has reports whether key carries a non-empty value.
func (v Values) Has(key string) bool {
	s, ok := v.Lookup(key)
	return ok && s != ""
}

// Require returns a usage error with message when key is not provided.
func (v Values) Require(key, message string) error {
	if !v.Has(key) {
		return errors.WrapWithContext(errors.ErrCodeInvalidRequest, message, nil,
			map[string]any{"key": key})
	}
	return nil
}

// Keys returns the provided keys in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k, val := range v {
		if val != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// LoadFile reads a flat YAML mapping from path.
// An empty path yields empty Values; a path that does not exist is a
// NOT_FOUND error.
func LoadFile(path string) (Values, error) {
	if strings.TrimSpace(path) == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.WrapWithContext(errors.ErrCodeNotFound, "config file not found", err,
				map[string]any{"path": path})
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a flat YAML mapping. An empty document yields empty Values.
func Parse(data []byte) (Values, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid config YAML", err)
	}
	if raw == nil {
		return Values{}, nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("config must be a YAML mapping, got %T", raw))
	}

	values := make(Values, len(m))
	for k, val := range m {
		switch val.(type) {
		case map[string]any, []any:
			return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("config key %q must be a scalar", k), nil, map[string]any{"key": k})
		}
		values[k] = val
	}
	return values, nil
}

// Merge returns base overlaid with every non-nil value in overrides.
// Neither input is modified.
func Merge(base Values, overrides ...Values) Values {
	out := base.Clone()
	for _, o := range overrides {
		for k, val := range o {
			if val == nil {
				continue
			}
			out[k] = val
		}
	}
	return out
}

// Suggestion pairs an unknown key with the closest known key, if any.
type Suggestion struct {
	Key     string
	Closest string
}

// UnknownKeys reports keys that are not in KnownKeys, sorted by key.
func UnknownKeys(v Values) []Suggestion {
	known := make(map[string]struct{}, len(KnownKeys))
	for _, k := range KnownKeys {
		known[k] = struct{}{}
	}

	var out []Suggestion
	for _, k := range v.Keys() {
		if _, ok := known[k]; ok {
			continue
		}
		out = append(out, Suggestion{Key: k, Closest: closestKey(k)})
	}
	return out
}

func closestKey(key string) string {
	best, bestDist := "", maxSuggestionDistance+1
	for _, k := range KnownKeys {
		if d := levenshtein.ComputeDistance(key, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// WarnUnknownKeys logs a warning for every unknown key.
// Unknown keys are still substituted.
func WarnUnknownKeys(v Values) {
	for _, s := range UnknownKeys(v) {
		if s.Closest != "" {
			slog.Warn("unknown config key", "key", s.Key, "did_you_mean", s.Closest)
			continue
		}
		slog.Warn("unknown config key", "key", s.Key)
	}
}

// LoadDotenv loads KEY=VALUE pairs from paths (default ".env") into the
// process environment. Variables already set are left alone and missing
// files are skipped.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		slog.Debug("loaded environment file", "path", p)
	}
	return nil
}
