package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hyfer-go-api/internal/dto"
)

func TestTimelineCacheRoundTripAndExpiry(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	cache := NewTimelineCache(redisClient, time.Minute, testLogger())
	ctx := context.Background()

	_, ok := cache.get(ctx)
	require.False(t, ok)

	version, ok := cache.version(ctx)
	require.True(t, ok)
	require.Zero(t, version)

	cache.set(ctx, version, []dto.RunningModuleResponse{{ID: 1, GroupID: 2, Position: 0, Duration: 3}})
	cached, ok := cache.get(ctx)
	require.True(t, ok)
	require.Len(t, cached, 1)
	require.Equal(t, 3, cached[0].Duration)

	server.FastForward(2 * time.Minute)
	_, ok = cache.get(ctx)
	require.False(t, ok)
}

func TestTimelineCacheInvalidate(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	cache := NewTimelineCache(redisClient, time.Minute, testLogger())
	ctx := context.Background()

	cache.set(ctx, 0, []dto.RunningModuleResponse{})
	require.True(t, server.Exists(timelineCacheKey))

	cache.invalidate(ctx)
	require.False(t, server.Exists(timelineCacheKey))

	version, ok := cache.version(ctx)
	require.True(t, ok)
	require.Equal(t, int64(1), version)
}

func TestTimelineCacheSkipsWriteFromOlderVersion(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	cache := NewTimelineCache(redisClient, time.Minute, testLogger())
	ctx := context.Background()

	stale, ok := cache.version(ctx)
	require.True(t, ok)

	cache.invalidate(ctx)
	fresh, ok := cache.version(ctx)
	require.True(t, ok)
	cache.set(ctx, fresh, []dto.RunningModuleResponse{{ID: 1}, {ID: 2}})

	cache.set(ctx, stale, []dto.RunningModuleResponse{{ID: 1}})

	cached, ok := cache.get(ctx)
	require.True(t, ok)
	require.Len(t, cached, 2)
}

func TestTimelineCacheIgnoresCorruptEntry(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	require.NoError(t, server.Set(timelineCacheKey, "{broken"))
	cache := NewTimelineCache(redisClient, time.Minute, testLogger())

	_, ok := cache.get(context.Background())
	require.False(t, ok)
}

func TestTimelineCacheWithoutClient(t *testing.T) {
	cache := NewTimelineCache(nil, 0, testLogger())
	ctx := context.Background()

	_, ok := cache.version(ctx)
	require.False(t, ok)
	cache.set(ctx, 0, []dto.RunningModuleResponse{{ID: 1}})
	_, ok = cache.get(ctx)
	require.False(t, ok)
	cache.invalidate(ctx)
}
