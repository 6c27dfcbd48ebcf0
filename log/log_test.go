package log_test

import (
	"context"
	"testing"

	"github.com/on-the-ground/skadi_go/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_DefaultsToNop(t *testing.T) {
	logger := log.FromContext(context.Background())
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestEff_WritesThroughRegisteredLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, endOfLogger := log.WithZapLogger(context.Background(), zap.New(core))

	log.Eff(ctx, log.LogInfo, "hello", map[string]interface{}{"key": "value"})
	log.Eff(ctx, log.LogWarn, "careful", nil)
	log.Eff(ctx, log.LogError, "broken", nil)
	log.Eff(ctx, log.LogDebug, "details", nil)
	log.Eff(ctx, log.LogLevel("unknown"), "fallback", nil)

	parent := endOfLogger()
	assert.Equal(t, context.Background(), parent)

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "value", entries[0].ContextMap()["key"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[3].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[4].Level)
}

func TestWithTestLogger_RegistersDebugLogger(t *testing.T) {
	ctx, endOfLogger := log.WithTestLogger(context.Background())
	defer endOfLogger()

	assert.True(t, log.FromContext(ctx).Core().Enabled(zapcore.DebugLevel))
}
