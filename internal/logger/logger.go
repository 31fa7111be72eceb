// Package logger wraps a zap logger shared by the server components.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger holds the process-wide zap logger.
type Logger struct {
	// Log is the configured logger. It is a no-op logger until Init succeeds.
	Log *zap.Logger
}

// New returns a Logger backed by a no-op zap logger.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces Log with a production JSON logger at the given level
// ("debug", "info", "warn", "error"; case-insensitive).
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	l.Log = zl
	return nil
}
