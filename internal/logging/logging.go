// Package logging builds the process logger from the [log] section.
package logging

import (
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger for cfg. debug forces the debug level.
func New(cfg config.LogConfig, debug bool) (*zap.Logger, *zap.AtomicLevel, error) {
	level := zapcore.InfoLevel
	if len(cfg.Level) > 0 {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	if cfg.Encoding != "" {
		cc.Encoding = cfg.Encoding
	}
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	if len(cfg.Outputs) > 0 {
		cc.OutputPaths = cfg.Outputs
	}

	log, err := cc.Build()
	if err != nil {
		return nil, nil, err
	}
	return log, &cc.Level, nil
}
