package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLog(t *testing.T) {
	t.Helper()
	Log = nil
	t.Cleanup(func() { Log = nil })
}

func TestInit_Level(t *testing.T) {
	tests := []struct {
		level    string
		enabled  zapcore.Level
		disabled zapcore.Level
	}{
		{level: "debug", enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{level: "info", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{level: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{level: "error", enabled: zapcore.ErrorLevel, disabled: zapcore.WarnLevel},
		{level: "LOUD", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			resetLog(t)

			require.NoError(t, Init(tt.level, ""))
			require.NotNil(t, Log)
			assert.True(t, Log.Core().Enabled(tt.enabled))
			assert.False(t, Log.Core().Enabled(tt.disabled))
		})
	}
}

func TestInit_FileOutputIsJSON(t *testing.T) {
	resetLog(t)
	logFile := filepath.Join(t.TempDir(), "ingest.log")

	require.NoError(t, Init("info", logFile))
	L().Info("Region job completed", zap.String("region", "AU"), zap.Int("fetched", 20))
	L().Debug("Below threshold")
	_ = Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"Region job completed"`)
	assert.Contains(t, lines[0], `"region":"AU"`)
	assert.Contains(t, lines[0], `"fetched":20`)
}

func TestInit_UnwritableFile(t *testing.T) {
	resetLog(t)

	err := Init("info", filepath.Join(t.TempDir(), "missing", "dir", "ingest.log"))
	assert.Error(t, err)
	assert.Nil(t, Log)
}

func TestL_BeforeInit(t *testing.T) {
	resetLog(t)

	require.NotNil(t, L())
	assert.NotPanics(t, func() {
		L().Warn("dropped", zap.String("region", "US"))
	})
	assert.NoError(t, Sync())

	require.NoError(t, Init("warn", ""))
	assert.Same(t, Log, L())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}
