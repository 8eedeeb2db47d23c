package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j3m2b/Baseball-Scientist/compression"
	"github.com/j3m2b/Baseball-Scientist/config"
	"github.com/j3m2b/Baseball-Scientist/models"
	"github.com/j3m2b/Baseball-Scientist/store"
)

// openTestRedis wraps a client for REDIS_TEST_URL and clears the digest key.
// Tests are skipped when the variable is unset.
func openTestRedis(t *testing.T) *CacheService {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err())

	cache := NewCacheServiceWithClient(client)
	require.NoError(t, cache.Delete(context.Background(), DigestKey))
	t.Cleanup(func() {
		_ = cache.Delete(context.Background(), DigestKey)
		_ = cache.Close()
	})
	return cache
}

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	cache, err := NewCacheService(ctx, config.RedisConfig{})
	require.NoError(t, err)
	assert.False(t, cache.Available())

	assert.NoError(t, cache.Set(ctx, DigestKey, "x", time.Minute))
	var got string
	found, err := cache.Get(ctx, DigestKey, &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, DigestKey))
	assert.NoError(t, cache.Publish(ctx, ConfigChannel, "x"))
	assert.Nil(t, cache.Subscribe(ctx, ConfigChannel))
	assert.ErrorIs(t, cache.WatchConfigs(ctx, func(models.AdaptiveConfig) {}), ErrCacheDisabled)
	assert.NoError(t, cache.Close())

	var nilCache *CacheService
	assert.False(t, nilCache.Available())
	assert.NoError(t, nilCache.Delete(ctx, DigestKey))
}

func TestCacheRejectsBadURL(t *testing.T) {
	cache, err := NewCacheService(context.Background(), config.RedisConfig{URL: "://nope"})
	assert.Error(t, err)
	assert.False(t, cache.Available())
}

func TestCacheRoundTripsDigest(t *testing.T) {
	cache := openTestRedis(t)
	ctx := context.Background()
	want := compression.Result{Text: "Cycle 3 (2025-04-04):", TokenEstimate: 6, CyclesIncluded: 1, CompressionRatio: "97%"}

	require.NoError(t, cache.Set(ctx, DigestKey, want, time.Minute))
	var got compression.Result
	found, err := cache.Get(ctx, DigestKey, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestContextServesCachedDigestUntilReset(t *testing.T) {
	cache := openTestRedis(t)
	st := store.NewMemory()
	seed(t, st, 3)
	ctx := context.Background()
	svc := NewFeedbackService(st, cache, DefaultOptions())

	first, err := svc.Context(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.CyclesIncluded)

	// A newer cycle is invisible while the digest is cached.
	seedFrom(t, st, 4, 4)
	cached, err := svc.Context(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	require.NoError(t, svc.Reset(ctx))
	var dropped compression.Result
	found, err := cache.Get(ctx, DigestKey, &dropped)
	require.NoError(t, err)
	assert.False(t, found)

	fresh, err := svc.Context(ctx)
	require.NoError(t, err)
	assert.Zero(t, fresh.CyclesIncluded)
}

func TestWatchConfigsReceivesPublished(t *testing.T) {
	cache := openTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []models.AdaptiveConfig
	)
	done := make(chan error, 1)
	go func() {
		done <- cache.WatchConfigs(ctx, func(c models.AdaptiveConfig) {
			mu.Lock()
			got = append(got, c)
			mu.Unlock()
		})
	}()

	want := models.AdaptiveConfig{Boldness: 75, SurpriseLow: 3, SurpriseHigh: 7, TargetClaims: 8, Rationale: "Accuracy is high."}
	// Publish until the subscriber is attached and has seen a message.
	require.Eventually(t, func() bool {
		_ = cache.Publish(context.Background(), ConfigChannel, want)
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want.Boldness, got[0].Boldness)
	assert.Equal(t, want.TargetClaims, got[0].TargetClaims)
	assert.Equal(t, want.Rationale, got[0].Rationale)
}
