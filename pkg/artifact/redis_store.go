package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis artifact backend settings
type RedisConfig struct {
	RedisURL    string `json:"redis_url" yaml:"redis_url"`
	KeyPrefix   string `json:"key_prefix" yaml:"key_prefix"`
	DatabaseNum int    `json:"database_num" yaml:"database_num"`
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		RedisURL:    "redis://localhost:6379",
		KeyPrefix:   "zpam:nb",
		DatabaseNum: 0,
	}
}

// RedisStore keeps artifact blobs in Redis so every serving replica loads the
// same pair without a shared filesystem.
type RedisStore struct {
	client *redis.Client
	config *RedisConfig
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %v", err)
	}
	opt.DB = config.DatabaseNum
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis connection failed: %v", err)
	}

	return &RedisStore{client: client, config: config}, nil
}

// Put stores blob under the role key.
func (s *RedisStore) Put(ctx context.Context, role Role, blob []byte) error {
	if err := s.client.Set(ctx, s.key(role), blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to store %s artifact: %v", role, err)
	}
	return nil
}

// Get fetches the blob for role.
func (s *RedisStore) Get(ctx context.Context, role Role) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(role)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no %s under %s", ErrArtifactMissing, role, s.key(role))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s artifact: %v", role, err)
	}
	return data, nil
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(role Role) string {
	return fmt.Sprintf("%s:artifact:%s", s.config.KeyPrefix, role)
}
