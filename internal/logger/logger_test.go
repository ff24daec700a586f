package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLoggerIsNop(t *testing.T) {
	require.NotNil(t, Logger)
	Logger.Infow("dropped", FieldURI, "mem://x")
}

func TestInitializeLevels(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	require.NoError(t, Initialize(Options{JSON: true, Level: "warn"}))
	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, Initialize(Options{Level: "debug"}))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	require.Error(t, Initialize(Options{Level: "chatty"}))
}

func TestComponentLoggerCarriesName(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	ComponentLogger("engine").Debugw("write", FieldRows, 3)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "engine", entries[0].LoggerName)
	assert.Equal(t, int64(3), entries[0].ContextMap()[FieldRows])
}
