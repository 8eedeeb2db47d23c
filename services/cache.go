package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/j3m2b/Baseball-Scientist/config"
	"github.com/j3m2b/Baseball-Scientist/models"
)

const (
	DigestKey     = "feedback:history_digest"
	ConfigChannel = "feedback:adaptive_config"
)

var ErrCacheDisabled = errors.New("redis cache disabled")

// CacheService wraps a redis client. A nil client turns every call into a no-op,
// so the pipeline runs unchanged without redis.
type CacheService struct {
	client *redis.Client
}

// NewCacheService connects to cfg.URL. An empty URL yields a disabled cache.
func NewCacheService(ctx context.Context, cfg config.RedisConfig) (*CacheService, error) {
	if cfg.URL == "" {
		return &CacheService{}, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return &CacheService{}, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	var lastErr error
	for i := 0; i < 5; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client}, nil
		}
		slog.Warn("redis ping failed", "attempt", i+1, "error", lastErr)
		select {
		case <-ctx.Done():
			client.Close()
			return &CacheService{}, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	client.Close()
	return &CacheService{}, fmt.Errorf("redis ping failed after 5 attempts: %w", lastErr)
}

// NewCacheServiceWithClient wraps an existing client.
func NewCacheServiceWithClient(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func (s *CacheService) Available() bool {
	return s != nil && s.client != nil
}

// Get decodes the JSON value at key into dest and reports whether it was present.
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Delete(ctx context.Context, key string) error {
	if !s.Available() {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message any) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

// WatchConfigs calls fn with every adaptive configuration published on
// ConfigChannel until ctx is done. Undecodable messages are logged and skipped.
func (s *CacheService) WatchConfigs(ctx context.Context, fn func(models.AdaptiveConfig)) error {
	if !s.Available() {
		return ErrCacheDisabled
	}
	sub := s.Subscribe(ctx, ConfigChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", ConfigChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var cfg models.AdaptiveConfig
			if err := json.Unmarshal([]byte(msg.Payload), &cfg); err != nil {
				slog.Warn("skipping malformed config message", "channel", msg.Channel, "error", err)
				continue
			}
			fn(cfg)
		}
	}
}

func (s *CacheService) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}
