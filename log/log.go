package log

import (
	"context"

	"go.uber.org/zap"
)

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"

	// LogDebug is used for debugging messages with detailed internal information.
	LogDebug LogLevel = "debug"
)

type loggerKey struct{}

// WithZapLogger registers logger in the returned context.
// Stores created with that context, and Eff calls made with it, log through logger.
// The teardown function syncs the logger and returns the parent context,
// which should be used for further operations.
func WithZapLogger(
	ctx context.Context,
	logger *zap.Logger,
) (context.Context, func() context.Context) {
	ctxWith := context.WithValue(ctx, loggerKey{}, logger)
	return ctxWith, func() context.Context {
		if err := logger.Sync(); err != nil {
			logger.Debug("failed to sync logger", zap.Error(err))
		}
		return ctx
	}
}

// FromContext returns the logger registered by WithZapLogger, or a no-op
// logger if there is none.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}

// Eff emits a structured log entry through the logger in ctx.
func Eff(ctx context.Context, level LogLevel, msg string, fields map[string]interface{}) {
	logger := FromContext(ctx)

	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}

	switch level {
	case LogInfo:
		logger.Info(msg, zapFields...)
	case LogWarn:
		logger.Warn(msg, zapFields...)
	case LogError:
		logger.Error(msg, zapFields...)
	case LogDebug:
		logger.Debug(msg, zapFields...)
	default:
		logger.Info(msg, zapFields...)
	}
}
