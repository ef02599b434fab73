package hwpx

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger for the given level and format.
// The console format uses zap's development encoder, json the production one.
func NewLogger(level, format string) (*zap.Logger, error) {
	var config zap.Config
	switch format {
	case "json":
		config = zap.NewProductionConfig()
	case "console", "":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	config.Level = zap.NewAtomicLevelAt(parseLogLevel(level))
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewLoggerFromConfig builds the logger described by config.
func NewLoggerFromConfig(config *Config) (*zap.Logger, error) {
	return NewLogger(config.LogLevel, config.LogFormat)
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel // Default to info
	}
}

// sourceFields are the fields attached to every per-source log line.
func sourceFields(index int, ref SourceRef) []zap.Field {
	fields := []zap.Field{
		zap.Int("index", index),
		zap.String("source", ref.Key),
	}
	if ref.OrderKey != "" {
		fields = append(fields, zap.String("order_key", ref.OrderKey))
	}
	return fields
}
