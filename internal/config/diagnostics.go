package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// LogConfig represents the [log] section
// Configuration of the process logger
type LogConfig struct {
	Level    string   `toml:"level" mapstructure:"level"`
	Encoding string   `toml:"encoding" mapstructure:"encoding"`
	Outputs  []string `toml:"outputs" mapstructure:"outputs"`
}

// Validate performs validation on the log configuration
func (l *LogConfig) Validate() error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	switch l.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log encoding: %s (valid options: console, json)", l.Encoding)
	}

	if len(l.Outputs) == 0 {
		return fmt.Errorf("at least one log output must be specified")
	}

	return nil
}

// IsDebug returns true if debug messages are logged
func (l *LogConfig) IsDebug() bool {
	level, err := zapcore.ParseLevel(l.Level)
	return err == nil && level <= zapcore.DebugLevel
}
