// Package logging builds the structured logger. Human-facing progress goes
// through ux; this log is the machine-readable record of each invocation.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jorge-barreto/ok/internal/config"
)

// New returns a JSON logger writing to lc.File at lc.Level. Verbose lowers
// the level to debug and tees a console encoder to stderr.
func New(lc config.Log, verbose bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	if err := os.MkdirAll(filepath.Dir(lc.File), 0755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.OutputPaths = []string{lc.File}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		console := zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			zapcore.DebugLevel,
		)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, console)
		}))
	}
	return logger, nil
}
