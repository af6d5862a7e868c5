package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-adp-comments/pkg/config"
	"github.com/noah-isme/sma-adp-comments/pkg/middleware/requestid"
)

func TestNewHonoursLevel(t *testing.T) {
	l, err := New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn", Format: "console"}})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := requestid.WithValue(context.Background(), "req-9")
	WithContext(ctx, base).Info("hello")
	WithContext(context.Background(), base).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}
