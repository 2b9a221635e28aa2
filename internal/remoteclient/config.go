package remoteclient

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/okena/remoted/internal/config"
)

// ServerConfig is one persisted connection record: everything the host UI
// needs to reconnect to a remembered server without the user re-pairing.
// The core itself is stateless across runs — this is purely what the
// host may choose to write to config.Runtime.ConnectionsPath().
type ServerConfig struct {
	ConnectionID string `yaml:"connection_id"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	SavedToken   string `yaml:"saved_token,omitempty"`
}

// connectionsFile is the on-disk shape: a list keyed by ConnectionID.
type connectionsFile struct {
	Servers []ServerConfig `yaml:"servers"`
}

// LoadConnections reads the persisted connection records, returning an
// empty slice (not an error) if the file does not yet exist.
func LoadConnections() ([]ServerConfig, error) {
	path := config.Runtime.ConnectionsPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("remoteclient: reading connections file: %w", err)
	}

	var f connectionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("remoteclient: parsing connections file: %w", err)
	}
	return f.Servers, nil
}

// SaveConnections overwrites the persisted connection records.
func SaveConnections(servers []ServerConfig) error {
	data, err := yaml.Marshal(connectionsFile{Servers: servers})
	if err != nil {
		return fmt.Errorf("remoteclient: encoding connections file: %w", err)
	}
	path := config.Runtime.ConnectionsPath()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("remoteclient: writing connections file: %w", err)
	}
	return nil
}
