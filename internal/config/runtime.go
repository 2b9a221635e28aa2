// Package config resolves the on-disk locations the remote server and its
// CLI collaborator use for persisted state (remote.json, saved tokens,
// connection records).
package config

import (
	"os"
	"path/filepath"
)

// RuntimeConfig holds the directories this process persists state into.
type RuntimeConfig struct {
	HomeDir   string
	ConfigDir string // ~/.config/remoted (or $REMOTED_CONFIG_DIR override)
	TempDir   string
}

// Runtime is the global runtime configuration instance, detected once at
// process start.
var Runtime *RuntimeConfig

func init() {
	Runtime = DetectRuntime()
}

// DetectRuntime resolves the home and config directories for the current
// user, creating the config directory if it does not yet exist.
func DetectRuntime() *RuntimeConfig {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			homeDir = "."
		}
	}

	configDir := os.Getenv("REMOTED_CONFIG_DIR")
	if configDir == "" {
		configDir = filepath.Join(homeDir, ".config", "remoted")
	}

	rc := &RuntimeConfig{
		HomeDir:   homeDir,
		ConfigDir: configDir,
		TempDir:   os.TempDir(),
	}

	_ = os.MkdirAll(rc.ConfigDir, 0o700)
	return rc
}

// RemoteJSONPath is the path to the `remote.json` file this server writes
// on startup and removes on shutdown.
func (rc *RuntimeConfig) RemoteJSONPath() string {
	return filepath.Join(rc.ConfigDir, "remote.json")
}

// ConnectionsPath is the path to the client-side persisted connection
// records (host, port, id, saved token).
func (rc *RuntimeConfig) ConnectionsPath() string {
	return filepath.Join(rc.ConfigDir, "connections.yaml")
}
