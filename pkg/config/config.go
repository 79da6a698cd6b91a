package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zpam/spam-classifier/pkg/features"
	"github.com/zpam/spam-classifier/pkg/learning"
)

// Config represents ZPAM classifier configuration
type Config struct {
	// Where the fitted vectorizer and classifier live
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Vectorizer parameters (frozen into the artifact at train time)
	Features features.Config `yaml:"features"`

	// Naive Bayes parameters
	Classifier learning.Config `yaml:"classifier"`

	// Training corpus settings
	Training TrainingConfig `yaml:"training"`

	// HTTP API settings
	Server ServerConfig `yaml:"server"`

	// Milter server settings
	Milter MilterConfig `yaml:"milter"`

	// NATS worker settings
	Queue QueueConfig `yaml:"queue"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// ArtifactsConfig selects and configures the artifact backend
type ArtifactsConfig struct {
	Backend        string      `yaml:"backend"` // "file" or "redis"
	VectorizerPath string      `yaml:"vectorizer_path"`
	ClassifierPath string      `yaml:"classifier_path"`
	Compress       bool        `yaml:"compress"` // zstd payloads
	Redis          RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis backend settings
type RedisConfig struct {
	URL         string `yaml:"url"`
	KeyPrefix   string `yaml:"key_prefix"`
	DatabaseNum int    `yaml:"database_num"`
}

// TrainingConfig contains corpus and split settings
type TrainingConfig struct {
	Format      string  `yaml:"format"` // "csv", "xlsx" or "maildir"
	TextColumn  string  `yaml:"text_column"`
	LabelColumn string  `yaml:"label_column"`
	Sheet       string  `yaml:"sheet"`     // xlsx only; empty = first sheet
	TestSize    float64 `yaml:"test_size"` // share held out for evaluation
	Seed        uint64  `yaml:"seed"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`

	// Token bucket per process; 0 disables limiting
	RateLimit float64 `yaml:"rate_limit"` // requests per second
	RateBurst int     `yaml:"rate_burst"`

	ReadTimeoutMs     int `yaml:"read_timeout_ms"`
	WriteTimeoutMs    int `yaml:"write_timeout_ms"`
	ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms"`

	EnableMetrics bool `yaml:"enable_metrics"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MilterConfig contains milter server settings
type MilterConfig struct {
	// Network and address for milter socket
	Network string `yaml:"network"` // "tcp" or "unix"
	Address string `yaml:"address"` // "127.0.0.1:7357" or "/tmp/zpam.sock"

	// Connection settings
	ReadTimeoutMs  int `yaml:"read_timeout_ms"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`

	GracefulShutdownTimeout int `yaml:"graceful_shutdown_timeout_ms"`

	// Header modifications
	AddSpamHeaders   bool   `yaml:"add_spam_headers"`   // Add X-ZPAM-NB-* headers
	SpamHeaderPrefix string `yaml:"spam_header_prefix"` // Prefix for spam headers

	// Reject spam whose confidence is at or above the threshold
	RejectSpam      bool    `yaml:"reject_spam"`
	RejectThreshold float64 `yaml:"reject_threshold"` // 0.5 - 1.0
	RejectMessage   string  `yaml:"reject_message"`
}

// QueueConfig contains NATS worker settings
type QueueConfig struct {
	URL             string `yaml:"url"`
	Subject         string `yaml:"subject"`
	QueueGroup      string `yaml:"queue_group"`
	Name            string `yaml:"name"`
	MaxReconnects   int    `yaml:"max_reconnects"`
	ReconnectWaitMs int    `yaml:"reconnect_wait_ms"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "console"
	File   string `yaml:"file"`   // empty = stderr
}

// DefaultConfig returns ZPAM default configuration
func DefaultConfig() *Config {
	return &Config{
		Artifacts: ArtifactsConfig{
			Backend:        "file",
			VectorizerPath: "models/tfidf_vectorizer.bin",
			ClassifierPath: "models/spam_classifier.bin",
			Compress:       true,
			Redis: RedisConfig{
				URL:         "redis://localhost:6379",
				KeyPrefix:   "zpam:nb",
				DatabaseNum: 0,
			},
		},
		Features:   *features.DefaultConfig(),
		Classifier: *learning.DefaultConfig(),
		Training: TrainingConfig{
			Format:      "csv",
			TextColumn:  "text",
			LabelColumn: "label_num",
			TestSize:    0.2,
			Seed:        42,
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8000,
			AllowedOrigins:    []string{"http://localhost:5500", "http://127.0.0.1:5500"},
			MaxBodyBytes:      1 << 20,
			RateLimit:         0,
			RateBurst:         50,
			ReadTimeoutMs:     10000,
			WriteTimeoutMs:    10000,
			ShutdownTimeoutMs: 10000,
			EnableMetrics:     true,
		},
		Milter: MilterConfig{
			Network:                 "tcp",
			Address:                 "127.0.0.1:7357",
			ReadTimeoutMs:           10000,
			WriteTimeoutMs:          10000,
			GracefulShutdownTimeout: 30000,
			AddSpamHeaders:          true,
			SpamHeaderPrefix:        "X-ZPAM-NB-",
			RejectSpam:              false,
			RejectThreshold:         0.95,
			RejectMessage:           "",
		},
		Queue: QueueConfig{
			URL:             "nats://127.0.0.1:4222",
			Subject:         "zpam.classify",
			QueueGroup:      "zpam-workers",
			Name:            "zpam-worker",
			MaxReconnects:   -1,
			ReconnectWaitMs: 2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	err = os.WriteFile(configPath, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Artifacts.Backend {
	case "file":
		if c.Artifacts.VectorizerPath == "" || c.Artifacts.ClassifierPath == "" {
			return fmt.Errorf("artifacts vectorizer_path and classifier_path are required")
		}
		if filepath.Clean(c.Artifacts.VectorizerPath) == filepath.Clean(c.Artifacts.ClassifierPath) {
			return fmt.Errorf("artifacts vectorizer_path and classifier_path must differ")
		}
	case "redis":
		if c.Artifacts.Redis.URL == "" {
			return fmt.Errorf("artifacts redis url is required")
		}
	default:
		return fmt.Errorf("artifacts backend must be 'file' or 'redis'")
	}

	if c.Features.MinTokenLength < 1 {
		return fmt.Errorf("features min_token_length must be >= 1")
	}
	if c.Features.MinDF < 1 {
		return fmt.Errorf("features min_df must be >= 1")
	}
	if c.Features.MaxFeatures < 0 {
		return fmt.Errorf("features max_features must be >= 0")
	}

	if c.Classifier.SmoothingFactor <= 0 {
		return fmt.Errorf("classifier smoothing_factor must be > 0")
	}

	if !slices.Contains([]string{"csv", "xlsx", "maildir"}, c.Training.Format) {
		return fmt.Errorf("training format must be 'csv', 'xlsx' or 'maildir'")
	}
	if c.Training.TestSize < 0 || c.Training.TestSize >= 1 {
		return fmt.Errorf("training test_size must be in [0, 1)")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("server max_body_bytes must be >= 1")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("server rate_burst must be >= 1 when rate limiting")
	}

	if c.Milter.Network != "tcp" && c.Milter.Network != "unix" {
		return fmt.Errorf("milter network must be 'tcp' or 'unix'")
	}
	if c.Milter.Address == "" {
		return fmt.Errorf("milter address cannot be empty")
	}
	if c.Milter.RejectThreshold < 0.5 || c.Milter.RejectThreshold > 1 {
		return fmt.Errorf("milter reject_threshold must be between 0.5 and 1.0")
	}

	if c.Queue.Subject == "" {
		return fmt.Errorf("queue subject cannot be empty")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console'")
	}

	return nil
}

// Millis converts a millisecond setting to a duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
