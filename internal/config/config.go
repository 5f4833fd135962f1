package config

import (
	"path/filepath"
)

// Config represents the complete unitrie configuration
type Config struct {
	// Node store holding trie nodes and long values
	Store StoreConfig `toml:"store" mapstructure:"store"`

	// Trie construction settings
	Trie TrieConfig `toml:"trie" mapstructure:"trie"`

	// Logging
	Log LogConfig `toml:"log" mapstructure:"log"`

	// Internal fields for configuration management
	configPath string `toml:"-" mapstructure:"-"`
}

// TrieConfig represents the [trie] section
type TrieConfig struct {
	// Secure adds hashed infixes to account and storage keys
	Secure bool `toml:"secure" mapstructure:"secure"`
}

// ConfigPaths holds the paths to configuration files
type ConfigPaths struct {
	Main string // Path to main config file (unitrie.toml); empty means defaults only
}

// DefaultConfigPaths returns the default configuration file paths
func DefaultConfigPaths() ConfigPaths {
	return ConfigPaths{
		Main: "unitrie.toml",
	}
}

// ConfigPathsFromDir returns configuration paths for a specific directory
func ConfigPathsFromDir(configDir string) ConfigPaths {
	return ConfigPaths{
		Main: filepath.Join(configDir, "unitrie.toml"),
	}
}

// GetConfigPath returns the path to the main configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}
