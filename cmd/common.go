package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/artifact"
	"github.com/zpam/spam-classifier/pkg/config"
	"github.com/zpam/spam-classifier/pkg/logging"
	"github.com/zpam/spam-classifier/pkg/normalize"
	"github.com/zpam/spam-classifier/pkg/pipeline"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %v", err)
	}
	return logger, nil
}

// openStore opens the configured artifact backend. The closer releases any
// connection the store holds.
func openStore(ctx context.Context, cfg *config.ArtifactsConfig) (artifact.Store, io.Closer, error) {
	switch cfg.Backend {
	case "redis":
		store, err := artifact.NewRedisStore(ctx, &artifact.RedisConfig{
			RedisURL:    cfg.Redis.URL,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DatabaseNum: cfg.Redis.DatabaseNum,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return artifact.NewFileStore(cfg.VectorizerPath, cfg.ClassifierPath), nopCloser{}, nil
	}
}

// loadModel opens the store and loads a validated model from it.
func loadModel(ctx context.Context, cfg *config.Config) (*pipeline.Model, artifact.Store, io.Closer, error) {
	store, closer, err := openStore(ctx, &cfg.Artifacts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open artifact store: %v", err)
	}
	model, err := pipeline.Load(ctx, store, normalize.New())
	if err != nil {
		closer.Close()
		return nil, nil, nil, fmt.Errorf("failed to load model: %w", err)
	}
	return model, store, closer, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
