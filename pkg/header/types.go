// Package header provides the Kubernetes-style kind/apiVersion/metadata
// header carried by hfjob documents such as the training plan.
package header

import (
	"fmt"
	"strings"
	"time"
)

const (
	APIVersionDomain = "hfjob.yngpu.io"
	APIVersionV1     = "v1alpha1"

	// MetadataCreated holds the RFC 3339 creation time.
	MetadataCreated = "created-at"
)

// Header contains metadata and versioning information for hfjob documents.
type Header struct {
	// Kind is the type of the document.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// APIVersion is the schema version of the document.
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`

	// Metadata contains key-value pairs describing the document.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// APIVersion returns "<kind>.hfjob.yngpu.io/v1alpha1" for kind.
func APIVersion(kind string) string {
	return fmt.Sprintf("%s.%s/%s", strings.ToLower(kind), APIVersionDomain, APIVersionV1)
}

// Set initializes the Header for kind and stamps the creation time.
func (h *Header) Set(kind string, now time.Time) {
	h.Kind = kind
	h.APIVersion = APIVersion(kind)
	h.Metadata = map[string]string{
		MetadataCreated: now.UTC().Format(time.RFC3339),
	}
}
