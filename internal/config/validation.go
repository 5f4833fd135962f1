package config

import (
	"fmt"
)

// ValidateConfig performs comprehensive validation on the complete configuration
func ValidateConfig(config *Config) error {
	// Validate store configuration
	if err := config.Store.Validate(); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	// Validate log configuration
	if err := config.Log.Validate(); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}

	return nil
}
