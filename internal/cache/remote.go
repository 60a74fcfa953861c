package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteCache is the optional key-value mirror behind the in-memory store.
// Implementations must be safe to call when the backend is down: failures
// surface as (false, err) / err for logging, never as panics, and callers
// always degrade to memory-only.
type RemoteCache interface {
	Available() bool
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// RemoteConfig holds Redis connection settings.
type RemoteConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
}

type redisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(cfg RemoteConfig) (RemoteCache, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisCache{client: client}, nil
}

func (r *redisCache) Available() bool { return true }

func (r *redisCache) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value for %s: %w", key, err)
	}
	return true, nil
}

func (r *redisCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// noopCache satisfies RemoteCache when no remote cache is configured, so
// core logic never branches on "is caching enabled".
type noopCache struct{}

// NewNoopCache returns a RemoteCache that misses on every read and
// discards every write.
func NewNoopCache() RemoteCache { return noopCache{} }

func (noopCache) Available() bool { return false }

func (noopCache) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	return false, nil
}

func (noopCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	return nil
}

func (noopCache) Ping(ctx context.Context) error { return nil }
