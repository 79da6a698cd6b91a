package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/zpam/spam-classifier/pkg/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with JSON format", func(t *testing.T) {
		logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json"})

		assert.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		logger, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "console"})

		assert.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("defaults to info level for invalid level", func(t *testing.T) {
		logger, err := NewLogger(&config.LoggingConfig{Level: "invalid", Format: "json"})

		assert.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("writes to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "zpam.log")
		logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", File: path})
		require.NoError(t, err)

		logger.Info("model loaded")
		require.NoError(t, logger.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"model loaded"`)
	})

	t.Run("unwritable file", func(t *testing.T) {
		_, err := NewLogger(&config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "missing", "x.log")})

		assert.Error(t, err)
	})
}
