package rtlog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func TestLogger_NilReceiverIsNoop(t *testing.T) {
	var l *Logger
	l.Error("boom")
	l.Warn("boom")
	l.Debug("boom")
	require.NoError(t, l.Sync())
}

func TestLogger_ErrorRecordsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core))

	l.Error("invocation failed", "cost", uint64(42), "trap", "unreachable")

	entries := logs.All()
	require.Equal(t, 1, len(entries))
	require.Equal(t, "invocation failed", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, uint64(42), fields["cost"])
	require.Equal(t, "unreachable", fields["trap"])
}

func TestLogger_OddKeyValuesKeepsExtra(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core))

	l.Debug("dangling", "onlykey")

	fields := logs.All()[0].ContextMap()
	require.Equal(t, "onlykey", fields["extra"])
}
