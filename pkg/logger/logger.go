package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"taskboard/pkg/trace"
)

// NewLogger builds the process logger. CONFIG_ENV=local switches to the
// console encoder; LOG_LEVEL (debug|info|warn|error) overrides the level.
func NewLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if os.Getenv("CONFIG_ENV") == "local" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if l, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(l)
		}
	}

	l, err := cfg.Build(zap.Fields(zap.String("service", "taskboard")))
	if err != nil {
		panic(err)
	}
	return l
}

// WithTrace adds the trace_id from ctx, if any.
func WithTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := trace.FromContext(ctx); id != "" {
		return l.With(zap.String("trace_id", id))
	}
	return l
}
