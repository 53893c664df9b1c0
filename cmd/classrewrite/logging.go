package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/jvm-rewrite/pipeline"
	"github.com/wippyai/jvm-rewrite/rewrite"
)

// setupLogging builds a console logger at level and installs it in the
// rewrite and pipeline packages. Debug switches to the development
// config so call sites carry caller information.
func setupLogging(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	rewrite.SetLogger(logger.Named("rewrite"))
	pipeline.SetLogger(logger.Named("pipeline"))
	return logger, nil
}
