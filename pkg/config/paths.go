package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns the path to the caseledger config directory (~/.caseledger).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".caseledger"), nil
}

// DefaultPath returns the path of a config file, e.g. "config.yaml".
// Absolute paths are returned as-is.
func DefaultPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
