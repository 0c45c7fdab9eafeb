// Package serializer writes structured data as YAML or JSON to a file or stdout.
//
// File outputs get their parent directories created, so arbitrarily nested
// paths such as jobs/team-a/alice/finetune.yaml work without preparation.
// Values that implement yaml.Marshaler or json.Marshaler control their own
// representation; the Job manifest uses this to keep template key order.
package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// SupportedFormats returns the accepted format names.
func SupportedFormats() []string {
	return []string{string(FormatYAML), string(FormatJSON)}
}

// IsUnknown reports whether f is not a supported format.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatYAML, FormatJSON:
		return false
	default:
		return true
	}
}

// Writer serializes values to an io.Writer.
type Writer struct {
	format Format
	out    io.Writer
	file   *os.File
	path   string
}

// NewWriter returns a Writer encoding to out. Unknown formats fall back to JSON.
func NewWriter(format Format, out io.Writer) *Writer {
	if format.IsUnknown() {
		slog.Debug("unknown output format, using json", "format", format)
		format = FormatJSON
	}
	if out == nil {
		out = os.Stdout
	}
	return &Writer{format: format, out: out}
}

// NewStdoutWriter returns a Writer encoding to stdout.
func NewStdoutWriter(format Format) *Writer {
	return NewWriter(format, os.Stdout)
}

// NewFileWriterOrStdout returns a stdout Writer for an empty path or "-",
// otherwise a Writer on a freshly truncated file at path. Missing parent
// directories are created.
func NewFileWriterOrStdout(format Format, path string) (*Writer, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == StdoutURI {
		return NewStdoutWriter(format), nil
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := NewWriter(format, f)
	w.file = f
	w.path = path
	return w, nil
}

// Path returns the output file path, or "" when writing to stdout.
func (w *Writer) Path() string {
	return w.path
}

// Serialize encodes v in the writer's format.
func (w *Writer) Serialize(_ context.Context, v any) error {
	var buf bytes.Buffer

	switch w.format {
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to serialize to yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to serialize to yaml: %w", err)
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to serialize to json: %w", err)
		}
	}

	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if w.path != "" {
		slog.Debug("output written", "path", w.path, "format", w.format, "size_bytes", buf.Len())
	}
	return nil
}

// Close closes the underlying file. It is safe to call on stdout writers
// and more than once.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("failed to close output file %s: %w", w.path, err)
	}
	return nil
}

// WriteFile serializes v to path (stdout for "" or "-") and returns the
// absolute path written, or "" for stdout.
func WriteFile(ctx context.Context, format Format, path string, v any) (string, error) {
	w, err := NewFileWriterOrStdout(format, path)
	if err != nil {
		return "", err
	}

	if err := w.Serialize(ctx, v); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	if w.Path() == "" {
		return "", nil
	}
	abs, err := filepath.Abs(w.Path())
	if err != nil {
		return w.Path(), nil
	}
	return abs, nil
}
