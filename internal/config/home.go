package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStateDir returns the sessionwal state directory.
// Priority order:
//  1. SESSIONWAL_HOME environment variable (if set)
//  2. $HOME/.sessionwal
//
// The directory is created if it doesn't exist.
func DefaultStateDir() (string, error) {
	if home := os.Getenv("SESSIONWAL_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create sessionwal home directory: %w", err)
		}
		return home, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get user home directory: %w", err)
	}

	stateDir := filepath.Join(userHome, ".sessionwal")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return "", fmt.Errorf("create sessionwal home directory: %w", err)
	}

	return stateDir, nil
}

// DefaultDBPath returns the default database path under the
// sessionwal state directory: $SESSIONWAL_HOME/sessions.db (or
// $HOME/.sessionwal/sessions.db).
func DefaultDBPath() (string, error) {
	dir, err := DefaultStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// DefaultLogDir returns the default log directory under the
// sessionwal state directory, creating it if necessary.
func DefaultLogDir() (string, error) {
	dir, err := DefaultStateDir()
	if err != nil {
		return "", err
	}
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("create sessionwal log directory: %w", err)
	}
	return logDir, nil
}
