package utils

import (
	"fmt"

	"go.uber.org/zap"
)

// ServiceName is attached to every log line.
const ServiceName = "transfer-dashboard"

// NewSugaredLogger creates a sugared logger based on the verbose flag.
// Verbose selects zap's development config (debug level, console encoding); otherwise the
// production config is used.
func NewSugaredLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.InitialFields = map[string]any{"service": ServiceName}

	l, err := cfg.Build()
	if err != nil {
		if verbose {
			return nil, fmt.Errorf("failed to create development logger: %w", err)
		}
		return nil, fmt.Errorf("failed to create production logger: %w", err)
	}
	return l.Sugar(), nil
}
