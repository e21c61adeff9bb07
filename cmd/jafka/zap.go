// Copyright 2025 The Jafka Authors.

package main

import "go.uber.org/zap"

// buildZapLogger builds the zap logger handed to the log manager's
// background workers (flush scheduler, retention engine, registry
// publisher), separate from the slog logger used for CLI/lifecycle output.
func buildZapLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = zapLevel
	return cfg.Build()
}
