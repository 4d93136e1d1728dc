package utils

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger.
var Logger *zap.Logger

// InitializeLogger sets up the logging configuration for the given environment.
// "production" gets JSON output at info level, anything else a colored development logger.
func InitializeLogger(env string) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var err error
	Logger, err = cfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
}

var nopLogger = zap.NewNop()

// GetLogger retrieves the global logger. Before InitializeLogger runs (tests) it returns a no-op logger.
func GetLogger() *zap.Logger {
	if Logger == nil {
		return nopLogger
	}
	return Logger
}
