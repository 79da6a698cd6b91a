package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "file", cfg.Artifacts.Backend)
	assert.Equal(t, "localhost:8000", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:5500", "http://127.0.0.1:5500"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "label_num", cfg.Training.LabelColumn)
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, uint64(42), cfg.Training.Seed)
	assert.Equal(t, 1.0, cfg.Classifier.SmoothingFactor)
	assert.Equal(t, 2, cfg.Features.MinTokenLength)
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")

		assert.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("overrides defaults from yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		yaml := `
artifacts:
  backend: redis
  redis:
    url: redis://cache:6379
features:
  max_features: 5000
  sublinear_tf: true
classifier:
  smoothing_factor: 0.5
server:
  port: 9090
logging:
  level: debug
  format: json
`
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

		cfg, err := LoadConfig(path)

		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.Artifacts.Backend)
		assert.Equal(t, "redis://cache:6379", cfg.Artifacts.Redis.URL)
		assert.Equal(t, "zpam:nb", cfg.Artifacts.Redis.KeyPrefix)
		assert.Equal(t, 5000, cfg.Features.MaxFeatures)
		assert.True(t, cfg.Features.SublinearTF)
		assert.Equal(t, 2, cfg.Features.MinTokenLength)
		assert.Equal(t, 0.5, cfg.Classifier.SmoothingFactor)
		assert.True(t, cfg.Classifier.FitPrior)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

		_, err := LoadConfig(path)

		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0644))

		_, err := LoadConfig(path)

		assert.ErrorContains(t, err, "invalid logging level")
	})
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Milter.RejectSpam = true
	cfg.Queue.Subject = "mail.classify"

	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown backend", func(c *Config) { c.Artifacts.Backend = "s3" }, "backend"},
		{"same artifact paths", func(c *Config) { c.Artifacts.ClassifierPath = c.Artifacts.VectorizerPath }, "must differ"},
		{"redis without url", func(c *Config) { c.Artifacts.Backend = "redis"; c.Artifacts.Redis.URL = "" }, "redis url"},
		{"zero smoothing", func(c *Config) { c.Classifier.SmoothingFactor = 0 }, "smoothing_factor"},
		{"min df", func(c *Config) { c.Features.MinDF = 0 }, "min_df"},
		{"token length", func(c *Config) { c.Features.MinTokenLength = 0 }, "min_token_length"},
		{"negative max features", func(c *Config) { c.Features.MaxFeatures = -1 }, "max_features"},
		{"training format", func(c *Config) { c.Training.Format = "parquet" }, "training format"},
		{"test size", func(c *Config) { c.Training.TestSize = 1 }, "test_size"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"body cap", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"burst", func(c *Config) { c.Server.RateLimit = 10; c.Server.RateBurst = 0 }, "rate_burst"},
		{"milter network", func(c *Config) { c.Milter.Network = "udp" }, "milter network"},
		{"reject threshold", func(c *Config) { c.Milter.RejectThreshold = 0.3 }, "reject_threshold"},
		{"queue subject", func(c *Config) { c.Queue.Subject = "" }, "queue subject"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()

			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}
