package dockwright

import (
	"os"
	"path/filepath"
)

// Home returns the dockwright home directory.
// It defaults to ~/.dockwright but can be overridden with the DOCKWRIGHT_HOME environment variable.
func Home() string {
	if v := os.Getenv("DOCKWRIGHT_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dockwright")
}

// DefaultDBPath returns the default run history database path (~/.dockwright/dockwright.db).
func DefaultDBPath() string {
	return filepath.Join(Home(), "dockwright.db")
}

// ConfigPath returns the config file looked up in the home directory.
func ConfigPath() string {
	return filepath.Join(Home(), "config.yaml")
}

// EnsureHome creates the home directory if it doesn't exist.
func EnsureHome() error {
	return os.MkdirAll(Home(), 0o755)
}
