// Package logger builds the process wide zap logger.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service tags every line written by the job.
const Service = "sparkifyetl"

func newConfig(level zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	// one line per input file is logged; sampling would drop most of them
	cfg.Sampling = nil
	cfg.InitialFields = map[string]interface{}{"service": Service}
	return cfg
}

// New builds a JSON logger at level with fields attached to every entry,
// and installs it as the zap global.
func New(level zapcore.Level, fields ...zap.Field) (*zap.Logger, error) {
	l, err := newConfig(level).Build(zap.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(l)
	return l, nil
}
