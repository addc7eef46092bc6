package logctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromCtx_PrefersStoredLogger(t *testing.T) {
	base := zap.NewNop().Sugar()
	scoped := base.With("k", "v")
	ctx := WithLogger(context.Background(), scoped)
	require.Same(t, scoped, FromCtx(ctx, base))
}

func TestFromCtx_FallsBackToBase(t *testing.T) {
	base := zap.NewNop().Sugar()
	require.Same(t, base, FromCtx(context.Background(), base))
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-1")
	require.Equal(t, "trace-1", TraceID(ctx))
	require.Equal(t, "", TraceID(context.Background()))
}
