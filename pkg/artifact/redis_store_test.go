package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var testRedisConfig = &RedisConfig{
	RedisURL:    "redis://localhost:6379",
	KeyPrefix:   "zpam:test:nb",
	DatabaseNum: 1, // Use separate database for testing
}

func isRedisAvailable() bool {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return client.Ping(ctx).Err() == nil
}

func TestRedisStoreRoundTrip(t *testing.T) {
	if !isRedisAvailable() {
		t.Skip("Redis not available, skipping test")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, testRedisConfig)
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	defer func() {
		store.client.Del(ctx, store.key(RoleExtractor), store.key(RoleClassifier))
		store.Close()
	}()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if _, err := LoadExtractor(ctx, store); !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("expected ErrArtifactMissing before save, got %v", err)
	}

	vec, nb := fitPair(t)
	if err := Save(ctx, store, RoleExtractor, vec, EncodeOptions{Compress: true}); err != nil {
		t.Fatal(err)
	}
	if err := Save(ctx, store, RoleClassifier, nb, EncodeOptions{}); err != nil {
		t.Fatal(err)
	}

	ext, err := LoadExtractor(ctx, store)
	if err != nil {
		t.Fatalf("LoadExtractor failed: %v", err)
	}
	if ext.Dim() != vec.Dim() {
		t.Errorf("dim = %d, expected %d", ext.Dim(), vec.Dim())
	}
	if _, err := LoadClassifier(ctx, store); err != nil {
		t.Fatalf("LoadClassifier failed: %v", err)
	}
}

func TestRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), &RedisConfig{RedisURL: "not a url"})
	if err == nil {
		t.Error("expected an error for an invalid URL")
	}
}
