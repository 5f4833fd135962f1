package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from multiple sources in priority order:
// 1. Default values
// 2. Configuration file (unitrie.toml), when a path is given
// 3. Environment variables (UNITRIE_ prefix)
func LoadConfig(paths ConfigPaths) (*Config, error) {
	// Create viper instance for main config
	v := viper.New()

	// 1. Set defaults first
	setDefaults(v)

	// 2. Load main configuration file
	if paths.Main != "" {
		if err := loadMainConfig(v, paths.Main); err != nil {
			return nil, fmt.Errorf("failed to load main config: %w", err)
		}
	}

	// 3. Set up environment variable support
	v.SetEnvPrefix("UNITRIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal main config into struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Store paths for reference
	config.configPath = paths.Main

	// 6. Validate the complete configuration
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadMainConfig loads the main configuration file
func loadMainConfig(v *viper.Viper, configPath string) error {
	// Set config file path
	v.SetConfigFile(configPath)

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return nil
}

// LoadConfigFromDir loads configuration from a directory containing unitrie.toml
func LoadConfigFromDir(configDir string) (*Config, error) {
	paths := ConfigPathsFromDir(configDir)
	return LoadConfig(paths)
}

// LoadDefaultConfig loads unitrie.toml from the working directory when it
// exists, and defaults plus environment otherwise
func LoadDefaultConfig() (*Config, error) {
	paths := DefaultConfigPaths()
	if _, err := os.Stat(paths.Main); os.IsNotExist(err) {
		paths.Main = ""
	}
	return LoadConfig(paths)
}

// ReloadConfig reloads configuration from the same paths
func ReloadConfig(existingConfig *Config) (*Config, error) {
	paths := ConfigPaths{
		Main: existingConfig.GetConfigPath(),
	}
	return LoadConfig(paths)
}

// SaveExampleConfig saves an example configuration file
func SaveExampleConfig(configPath string) error {
	exampleConfig := generateExampleConfig()

	v := viper.New()

	// Set all example values
	for key, value := range exampleConfig {
		v.Set(key, value)
	}

	// Write to file
	v.SetConfigFile(configPath)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}

	return nil
}

// generateExampleConfig generates example configuration values
func generateExampleConfig() map[string]interface{} {
	return map[string]interface{}{
		"store.backend":           "pebble",
		"store.path":              "/var/lib/unitrie/db",
		"store.cache_size":        16384,
		"store.cache_ttl":         "10m",
		"store.compressor":        "lz4",
		"store.create_if_missing": true,
		"store.node_cache_size":   8192,
		"store.codec":             "unitrie",

		"trie.secure": true,

		"log.level":    "info",
		"log.encoding": "console",
		"log.outputs":  []string{"stderr"},
	}
}
