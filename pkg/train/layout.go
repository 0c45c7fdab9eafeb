package train

import (
	"fmt"
	"os"
	"path/filepath"
)

const layoutDirPerm = 0o755

// Layout is the Hugging Face local storage tree under the storage root.
type Layout struct {
	Root     string `json:"root" yaml:"root"`
	Models   string `json:"models" yaml:"models"`
	Logs     string `json:"logs" yaml:"logs"`
	Datasets string `json:"datasets" yaml:"datasets"`
	Cache    string `json:"cache" yaml:"cache"`
}

// NewLayout returns the layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{
		Root:     root,
		Models:   filepath.Join(root, "models"),
		Logs:     filepath.Join(root, "logs"),
		Datasets: filepath.Join(root, "datasets"),
		Cache:    filepath.Join(root, "cache"),
	}
}

// Dirs returns every directory of the layout except the root.
func (l Layout) Dirs() []string {
	return []string{l.Models, l.Logs, l.Datasets, l.Cache}
}

// Ensure creates all layout directories. Existing directories are kept.
func (l Layout) Ensure() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, layoutDirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
