package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/reportal/internal/config"
	"github.com/pitabwire/reportal/model"
)

// Context key for the logger.
type loggerKey struct{}

// NewLogger creates a zap.Logger writing JSON to cfg.LogOutput, a file path or
// "stdout"/"stderr" (stdout when empty). Every entry carries service=reportal.
//
// Log level usage conventions:
//   - error: Primary store failures, unhandled panics, 5xx responses
//   - warn:  Client errors (4xx), mirror write failures, hierarchy fetch failures
//   - info:  Request end, configuration saves, submissions, seed application
//   - debug: Classification cache hits, access cache refreshes
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	output := cfg.LogOutput
	if output == "" {
		output = "stdout"
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    map[string]any{"service": "reportal"},
	}

	return zapCfg.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in the context, or the provided
// fallback if none is found.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// RequestLogger returns a logger enriched with RequestContext fields.
// If no logger is in the context, the fallback is used.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)

	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return logger
	}

	fields := []zap.Field{
		zap.String("subject_id", rctx.SubjectID),
		zap.String("correlation_id", rctx.CorrelationID),
	}
	if len(rctx.Roles) > 0 {
		fields = append(fields, zap.Strings("roles", rctx.Roles))
	}
	if len(rctx.Offices) > 0 {
		fields = append(fields, zap.Strings("token_offices", rctx.Offices))
	}

	// Include trace_id if present.
	if rctx.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rctx.TraceID))
	}

	return logger.With(fields...)
}

const redacted = "[REDACTED]"

// SubmittedValues returns a zap field holding a form's submitted values. The
// values of fields named in hidden are replaced by "[REDACTED]"; ids compare
// case-insensitively. values itself is not modified.
func SubmittedValues(values map[string]any, hidden []string) zap.Field {
	if len(hidden) == 0 {
		return zap.Any("values", values)
	}
	drop := make(map[string]bool, len(hidden))
	for _, id := range hidden {
		drop[strings.ToLower(strings.TrimSpace(id))] = true
	}
	out := make(map[string]any, len(values))
	for id, v := range values {
		if drop[strings.ToLower(id)] {
			out[id] = redacted
			continue
		}
		out[id] = v
	}
	return zap.Any("values", out)
}
