package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/radiantone/emerge/errors"
)

// NodeConfig is the full configuration of one emerge node.
type NodeConfig struct {
	// Name identifies the node in hello responses and logs.
	Name string `yaml:"name"`

	NATS   NATSConfig   `yaml:"nats"`
	HTTP   HTTPConfig   `yaml:"http"`
	Store  StoreConfig  `yaml:"store"`
	Engine EngineConfig `yaml:"engine"`
	Search SearchConfig `yaml:"search"`
	Log    LogConfig    `yaml:"log"`
}

// NATSConfig is the node's broker connection.
type NATSConfig struct {
	// URL of the NATS server; empty disables the NATS binding.
	URL string `yaml:"url"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// HTTPConfig is the node's HTTP gateway.
type HTTPConfig struct {
	// Addr is the listen address; empty disables the HTTP gateway.
	Addr string `yaml:"addr"`

	MaxRequestSize int64   `yaml:"max_request_size,omitempty"`
	RateLimit      float64 `yaml:"rate_limit,omitempty"`
	RateBurst      int     `yaml:"rate_burst,omitempty"`
}

// StoreConfig selects the namespace policies.
type StoreConfig struct {
	// RemovePolicy is "fail" (refuse non-empty directories, default)
	// or "cascade".
	RemovePolicy string `yaml:"remove_policy,omitempty"`

	// MkdirPolicy is "implicit" (create missing parents, default) or
	// "require_parent".
	MkdirPolicy string `yaml:"mkdir_policy,omitempty"`
}

// EngineConfig selects execution defaults.
type EngineConfig struct {
	// PersistMode is "persistent" (default) or "transient".
	PersistMode string `yaml:"persist_mode,omitempty"`
}

// SearchConfig tunes predicate search.
type SearchConfig struct {
	// Workers bounds the parallel scan; 0 picks the engine default.
	Workers int `yaml:"workers,omitempty"`

	// Root scopes every search below one directory. Default "/".
	Root string `yaml:"root,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error". Default "info".
	Level string `yaml:"level,omitempty"`

	// Format is "text" (default) or "json".
	Format string `yaml:"format,omitempty"`
}

// DefaultNodeConfig returns a runnable single-node configuration.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Name: "emerge",
		NATS: NATSConfig{URL: "nats://localhost:4222"},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// LoadNodeConfig reads and validates a node configuration file.
// Environment references in the file are expanded first.
func LoadNodeConfig(path string) (NodeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, errors.WrapKind(errors.KindInternal, err,
			"Config", "LoadNodeConfig", "read "+path)
	}

	cfg := DefaultNodeConfig()
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return NodeConfig{}, errors.WrapKind(errors.KindInternal, err,
			"Config", "LoadNodeConfig", "parse "+path)
	}
	if err := cfg.Validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// Validate checks enum fields and transport requirements.
func (c *NodeConfig) Validate() error {
	if c.Name == "" {
		return errors.Internal("Config", "Validate", "node name cannot be empty")
	}
	if c.NATS.URL == "" && c.HTTP.Addr == "" {
		return errors.Internal("Config", "Validate",
			"at least one of nats.url and http.addr must be set")
	}

	switch c.Store.RemovePolicy {
	case "", "fail", "cascade":
	default:
		return errors.Internal("Config", "Validate",
			fmt.Sprintf("unknown remove_policy %q, want fail or cascade", c.Store.RemovePolicy))
	}
	switch c.Store.MkdirPolicy {
	case "", "implicit", "require_parent":
	default:
		return errors.Internal("Config", "Validate",
			fmt.Sprintf("unknown mkdir_policy %q, want implicit or require_parent", c.Store.MkdirPolicy))
	}
	switch c.Engine.PersistMode {
	case "", "persistent", "transient":
	default:
		return errors.Internal("Config", "Validate",
			fmt.Sprintf("unknown persist_mode %q, want persistent or transient", c.Engine.PersistMode))
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Internal("Config", "Validate",
			fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.Internal("Config", "Validate",
			fmt.Sprintf("unknown log format %q, want text or json", c.Log.Format))
	}
	if c.Search.Workers < 0 {
		return errors.Internal("Config", "Validate", "search workers cannot be negative")
	}
	return nil
}
