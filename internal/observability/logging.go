// Package observability provides the process-wide zap loggers.
//
// CLILogger is used by command handlers for operator-facing structured
// output on stderr. Logger() returns the service logger used by the HTTP
// server and the research pipeline.
package observability

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger for command-line operations. It defaults to a
// console logger at info level until Init is called.
var CLILogger = mustConsoleLogger(zapcore.InfoLevel)

var (
	mu            sync.RWMutex
	serviceLogger = zap.NewNop()
)

// Init configures both loggers from the resolved logging config.
//
// Profile selects the encoding: "structured" emits JSON (service
// deployments), "console" emits human-readable lines. Level is a zap
// level string ("debug", "info", "warn", "error").
func Init(level, profile string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch profile {
	case "console", "CONSOLE":
		cfg = zap.NewDevelopmentConfig()
	case "structured", "STRUCTURED", "":
		cfg = zap.NewProductionConfig()
	default:
		return fmt.Errorf("unknown logging profile %q", profile)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	serviceLogger = logger
	CLILogger = mustConsoleLogger(lvl)
	return nil
}

// Logger returns the service logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return serviceLogger
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = serviceLogger.Sync()
	_ = CLILogger.Sync()
}

// mustConsoleLogger builds a stderr console logger. Console encoding
// keeps CLI output readable while staying structured.
func mustConsoleLogger(lvl zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core)
}
