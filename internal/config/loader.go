package config

import (
	"fmt"
	"os"
)

// LoadFile reads and parses a YAML config document from path,
// grounded on pkg/flowgraph/config/loader.go's FromFile (trimmed to
// YAML only: spec.md §6 names YAML as the document format, and the
// teacher's JSON branch has no counterpart to reuse here).
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(data)
}
