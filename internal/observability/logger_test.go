// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/uiprobe/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -- Test Helper Functions --

// initBuffered initializes the global logger against an in-memory writer.
func initBuffered(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("console logger colors the level", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Named("runner").Info("scenario finished")
		Sync()

		output := buf.String()
		assert.Contains(t, output, ansi["green"]+"INFO"+ansiReset)
		assert.Contains(t, output, "TestService.runner.")
		assert.Contains(t, output, "scenario finished")
	})

	t.Run("json logger emits structured fields", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})
		GetLogger().Warn("slow page", zap.String("scenario", "valid_login"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "slow page", entry["msg"])
		assert.Equal(t, "valid_login", entry["scenario"])
	})

	t.Run("level filter drops debug output", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "warn", Format: "json"})
		GetLogger().Debug("hidden")
		Sync()
		assert.Empty(t, buf.String())
	})

	t.Run("writes a rotated file copy when configured", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "uiprobe.log")
		initBuffered(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1})
		GetLogger().Error("goes to the file")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"goes to the file"`)
	})

	t.Run("only the first initialization wins", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"})
		first := GetLogger()

		var other bytes.Buffer
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&other))
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()
		assert.Contains(t, buf.String(), "First")
		assert.Empty(t, other.String())
	})
}

func TestPalette(t *testing.T) {
	p := palette(config.ColorConfig{Warn: "yellow", Fatal: "magenta", Debug: "no-such-color"})
	assert.Equal(t, ansi["yellow"], p[zapcore.WarnLevel])
	assert.Equal(t, ansi["magenta"], p[zapcore.PanicLevel], "panic levels share the fatal color")
	assert.Empty(t, p[zapcore.DebugLevel])

	buf := initBuffered(t, config.LoggerConfig{Level: "debug", Format: "console", Colors: config.ColorConfig{Debug: "no-such-color"}})
	GetLogger().Debug("plain")
	Sync()
	assert.Contains(t, buf.String(), "DEBUG")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestGetLogger(t *testing.T) {
	t.Run("falls back before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("returns the stored logger", func(t *testing.T) {
		initBuffered(t, config.LoggerConfig{Level: "info"})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
