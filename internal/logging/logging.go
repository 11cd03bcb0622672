// Package logging builds the zap loggers used across the loader.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "console"

	// OutputPath defaults to stderr so stdout stays free for command output.
	OutputPath string
}

// New creates a logger from level and format names. An unknown level falls
// back to info.
func New(level, format string) (*zap.Logger, error) {
	return NewWithConfig(Config{Level: level, Format: format})
}

// NewWithConfig creates a logger from a Config.
func NewWithConfig(cfg Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()

	atomic, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
	if err != nil {
		atomic = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = atomic

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig.Encoding = "json"
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stderr"
	}
	zapConfig.OutputPaths = []string{output}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "facturas")), nil
}

// Must is New that falls back to a no-op logger instead of failing.
func Must(level, format string) *zap.Logger {
	logger, err := New(level, format)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
