package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the default data directory
// (`{home}/.insightd`, disk layout), falling back to a
// temp directory if the home directory can't be resolved, matching
// internal/logging.DefaultLogDir's fallback.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".insightd")
	}
	return filepath.Join(home, ".insightd")
}
