// Package logging holds the process-wide structured logger.
package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// GetLogger returns the process-wide logger. It discards everything until
// SetLogger is called.
func GetLogger() *zap.Logger {
	return global.Load()
}

// SetLogger replaces the process-wide logger and returns a function that
// restores the previous one.
func SetLogger(l *zap.Logger) (restore func()) {
	if l == nil {
		l = zap.NewNop()
	}
	prev := global.Swap(l)
	return func() {
		global.Store(prev)
	}
}

// Named returns a child of the process-wide logger.
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// New builds a console logger writing to stderr. Verbose loggers emit debug
// entries, including one per kernel launch.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
