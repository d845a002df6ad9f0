package cmd

import (
	"fmt"

	"github.com/dukex/stageflow/pkg/directory"
)

// NewDirectory loads the actor directory and catalogs from path, or the built-in
// catalog when path is empty.
func NewDirectory(path string) (*directory.Static, error) {
	if path == "" {
		return directory.Default(), nil
	}

	static, err := directory.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}

	return static, nil
}
