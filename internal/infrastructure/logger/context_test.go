package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	t.Run("stores and retrieves logger", func(t *testing.T) {
		logger := zap.NewNop()
		ctx := WithContext(context.Background(), logger)
		assert.Same(t, logger, FromContext(ctx))
	})

	t.Run("returns no-op logger when absent", func(t *testing.T) {
		logger := FromContext(context.Background())
		require.NotNil(t, logger)
		// Must not panic
		logger.Info("ignored")
	})
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx, enriched := WithRequestID(context.Background(), logger, "req-123")
	assert.Equal(t, "req-123", GetRequestID(ctx))

	enriched.Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-123", logs.All()[0].ContextMap()["request_id"])
}

func TestGetRequestID(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestL(t *testing.T) {
	t.Run("enriches with request id", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		ctx := WithContext(context.Background(), zap.New(core))
		ctx = context.WithValue(ctx, RequestIDKey, "req-9")

		L(ctx).Info("traced")
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "req-9", logs.All()[0].ContextMap()["request_id"])
	})

	t.Run("falls back to no-op without a logger", func(t *testing.T) {
		L(context.Background()).Info("dropped")
	})
}
