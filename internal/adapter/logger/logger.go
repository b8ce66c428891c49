// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console logger for development and a JSON logger for any
// other environment, then installs it as the zap global.
func New(env string, level zapcore.Level) (*zap.Logger, error) {
	cfg := buildConfig(env)
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log = log.With(zap.String("env", env))

	zap.ReplaceGlobals(log)
	return log, nil
}

func buildConfig(env string) zap.Config {
	if env == "development" || env == "local" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
