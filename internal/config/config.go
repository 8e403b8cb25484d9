// Package config loads the relay's settings from a YAML file, the way
// the project's existing multiserver.yml loader does, but into a typed
// struct now that the full key set the core consumes is fixed.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ServerMode selects whether the auth/listing collaborators are active.
type ServerMode string

const (
	ModeLAN  ServerMode = "LAN"
	ModeINET ServerMode = "INET"
)

// Config is the full set of keys the core consumes. Fields are
// exported so yaml.Unmarshal can populate them directly.
type Config struct {
	MaxClients  int        `yaml:"max_clients"`
	ListenPort  int        `yaml:"listen_port"`
	ServerMode  ServerMode `yaml:"server_mode"`

	EnableScripting bool   `yaml:"enable_scripting"`
	ScriptPath      string `yaml:"script_path"`

	PrintStats    bool `yaml:"print_stats"`
	EnableConsole bool `yaml:"enable_console"`

	ServerListURL  string `yaml:"serverlist_url"`
	ServerListName string `yaml:"serverlist_name"`
	ServerListDesc string `yaml:"serverlist_desc"`

	MOTDPath        string `yaml:"motd_path"`
	FrameMaxPayload int    `yaml:"frame_max_payload"`

	AuthDBPath string `yaml:"auth_db_path"`
}

// ErrMissingKey is returned by Validate, wrapped with the offending
// key's name, when a required key is absent.
type ErrMissingKey struct {
	Key string
}

func (e *ErrMissingKey) Error() string {
	return fmt.Sprintf("config: missing required key %q", e.Key)
}

// Load reads and parses path, then validates the result. A
// ConfigValidation failure here is meant to be fatal before the first
// accept, per the error taxonomy.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	c := defaults()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func defaults() *Config {
	return &Config{
		ServerMode:      ModeLAN,
		MOTDPath:        "motd.txt",
		FrameMaxPayload: 64 * 1024,
		AuthDBPath:      "storage/auth.sqlite",
	}
}

// Validate checks the keys the core cannot run without.
func (c *Config) Validate() error {
	if c.MaxClients <= 0 {
		return &ErrMissingKey{Key: "max_clients"}
	}
	if c.ListenPort <= 0 {
		return &ErrMissingKey{Key: "listen_port"}
	}
	if c.ServerMode != ModeLAN && c.ServerMode != ModeINET {
		return fmt.Errorf("config: server_mode must be LAN or INET, got %q", c.ServerMode)
	}
	return nil
}
