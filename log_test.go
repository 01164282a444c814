package cblgo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestSetLogger_ReachesRef(t *testing.T) {
	logs := observe(t)

	doc, err := NewDocument("logged")
	require.NoError(t, err)
	require.NoError(t, doc.Release())
	assert.ErrorIs(t, doc.Release(), ErrReleased)

	entries := logs.FilterMessage("use after release").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ref", entries[0].LoggerName)
	assert.Equal(t, "Document", entries[0].ContextMap()["kind"])
}

func TestZapLogCallback(t *testing.T) {
	logs := observe(t)

	zapLogCallback(LogDomainQuery, LogWarning, "slow query")
	zapLogCallback(LogDomainNetwork, LogError, "connection refused")
	zapLogCallback(LogDomainDatabase, LogVerbose, "opened")

	all := logs.All()
	require.Len(t, all, 3)
	assert.Equal(t, zapcore.WarnLevel, all[0].Level)
	assert.Equal(t, "native", all[0].LoggerName)
	assert.Equal(t, "query", all[0].ContextMap()["domain"])
	assert.Equal(t, zapcore.ErrorLevel, all[1].Level)
	assert.Equal(t, zapcore.DebugLevel, all[2].Level)
}

func TestSetLogCallback_RequiresLibcblite(t *testing.T) {
	assert.Error(t, SetLogCallback(LogInfo, func(LogDomain, LogLevel, string) {}))
	assert.Error(t, ForwardNativeLogs(LogWarning))
}
