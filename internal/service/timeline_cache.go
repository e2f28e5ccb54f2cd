package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/observability"
)

const (
	timelineCacheKey        = "timeline:v1:all"
	timelineCacheVersionKey = "timeline:v1:version"
)

var errStaleTimeline = errors.New("timeline cache version moved")

// TimelineCache stores the full timeline in Redis. A nil client turns every
// call into a no-op miss.
//
// Every invalidation bumps a version counter. Writers read the version before
// loading the timeline and only store it while that version is still current,
// so a snapshot taken before a concurrent commit never replaces a newer one.
type TimelineCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewTimelineCache constructs the cache.
func NewTimelineCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *TimelineCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &TimelineCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "timeline_cache").Logger(),
	}
}

func (c *TimelineCache) get(ctx context.Context) ([]dto.RunningModuleResponse, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, timelineCacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read timeline cache")
		}
		observability.TimelineCacheRequests().WithLabelValues("miss").Inc()
		return nil, false
	}

	var timeline []dto.RunningModuleResponse
	if err := json.Unmarshal([]byte(payload), &timeline); err != nil {
		c.logger.Warn().Err(err).Msg("failed to decode timeline cache")
		observability.TimelineCacheRequests().WithLabelValues("miss").Inc()
		return nil, false
	}

	observability.TimelineCacheRequests().WithLabelValues("hit").Inc()
	return timeline, true
}

// version returns the current cache generation. ok is false when the cache is
// disabled or unreachable, in which case nothing should be stored.
func (c *TimelineCache) version(ctx context.Context) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}

	version, err := c.client.Get(ctx, timelineCacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read timeline cache version")
		return 0, false
	}
	return version, true
}

// set stores the timeline loaded under version. The write is skipped when an
// invalidation happened in between.
func (c *TimelineCache) set(ctx context.Context, version int64, timeline []dto.RunningModuleResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(timeline)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode timeline cache")
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, timelineCacheVersionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleTimeline
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, timelineCacheKey, payload, c.ttl)
			return nil
		})
		return err
	}, timelineCacheVersionKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleTimeline), errors.Is(err, redis.TxFailedErr):
		observability.TimelineCacheRequests().WithLabelValues("stale").Inc()
		c.logger.Debug().Int64("version", version).Msg("skipping stale timeline cache write")
	default:
		c.logger.Warn().Err(err).Msg("failed to store timeline cache")
	}
}

func (c *TimelineCache) invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, timelineCacheVersionKey)
		pipe.Del(ctx, timelineCacheKey)
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate timeline cache")
	}
}
