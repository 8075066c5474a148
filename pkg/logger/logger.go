// Package logger provides the structured Logger used across the storefront
// packages. It is a thin interface over zap so components can be handed a
// no-op logger in tests.
package logger

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	validLevels    = []string{"debug", "info", "warn", "error"}
	validEncodings = []string{"json", "console"}
)

// Logger defines the logging operations components depend on.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) *zap.Logger
	Sync() error
}

// Config is the configuration for the logger.
type Config struct {
	// Level, one of debug, info, warn, error
	// default: "info"
	Level string `mapstructure:"level"`
	// Encoding, json or console
	// default: "json"
	Encoding string `mapstructure:"encoding"`
	// default: []string{"stderr"}
	OutputPaths []string `mapstructure:"output_paths"`
}

// DefaultConfig returns the default configuration for the logger.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Encoding:    "json",
		OutputPaths: []string{"stderr"},
	}
}

// Validate validates the configuration for the logger.
func (c Config) Validate() error {
	if !slices.Contains(validLevels, c.Level) {
		return fmt.Errorf("logger: invalid level %q, must be one of: %s", c.Level, strings.Join(validLevels, ", "))
	}
	if !slices.Contains(validEncodings, c.Encoding) {
		return fmt.Errorf("logger: invalid encoding %q, must be 'json' or 'console'", c.Encoding)
	}
	return nil
}

// New builds a zap logger from cfg, filling empty fields with defaults.
func New(cfg Config) (Logger, error) {
	defaults := DefaultConfig()
	if cfg.Level == "" {
		cfg.Level = defaults.Level
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaults.Encoding
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = defaults.OutputPaths
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Encoding == "console",
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := zapConfig.Build(zap.AddStacktrace(zapcore.DPanicLevel))
	if err != nil {
		return nil, fmt.Errorf("logger: failed to build logger: %w", err)
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return zap.NewNop()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
