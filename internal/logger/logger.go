// Package logger holds the process-wide structured logger.
//
// Packages obtain a named child via ComponentLogger at construction time and
// log through the returned *zap.SugaredLogger. Until Initialize is called the
// global logger is a no-op, so library use never prints.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Options configures Initialize.
type Options struct {
	// JSON selects the production JSON encoder; otherwise a console encoder.
	JSON bool
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
}

// Initialize replaces the global logger according to opts.
func Initialize(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}

	var cfg zap.Config
	if opts.JSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Logger = zl.Sugar()
	return nil
}

// Replace swaps the global logger, returning a function restoring the previous one.
// Tests use it with zaptest/observer cores.
func Replace(l *zap.Logger) func() {
	prev := Logger
	Logger = l.Sugar()
	return func() { Logger = prev }
}

// ComponentLogger returns a named logger for a specific component.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Cleanup flushes any buffered log entries.
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func parseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zap.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return lvl, err
	}
	return lvl, nil
}
