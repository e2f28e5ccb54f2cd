package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hyfer-go-api/internal/dto"
	"github.com/noah-isme/hyfer-go-api/internal/observability"
)

const (
	timelineEventBufferSize = 16
	redisResubscribeDelay   = 500 * time.Millisecond
)

// TimelineEvents fans timeline change notifications out to local subscribers
// and, when configured, to other API nodes over Redis pub/sub and NATS.
type TimelineEvents struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
	retryDelay   time.Duration

	mu          sync.RWMutex
	subscribers map[chan dto.TimelineEventResponse]struct{}
}

type timelineEnvelope struct {
	Source string                    `json:"source"`
	Event  dto.TimelineEventResponse `json:"event"`
}

// NewTimelineEvents constructs the event hub. redisClient and natsConn may be nil.
func NewTimelineEvents(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *TimelineEvents {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &TimelineEvents{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "timeline_events").Logger(),
		nodeID:       uuid.NewString(),
		retryDelay:   redisResubscribeDelay,
		subscribers:  make(map[chan dto.TimelineEventResponse]struct{}),
	}
}

// Start subscribes to the remote transports. The Redis subscription is
// confirmed before Start returns so no event published afterwards is missed.
func (e *TimelineEvents) Start(ctx context.Context) {
	if e == nil {
		return
	}

	if e.redis != nil && e.redisChannel != "" {
		pubsub := e.redis.Subscribe(ctx, e.redisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			e.logger.Error().Err(err).Msg("failed to subscribe to timeline redis channel")
			_ = pubsub.Close()
		} else {
			go e.consumeRedis(ctx, pubsub)
		}
	}

	if e.nats != nil && e.natsSubject != "" {
		e.consumeNATS(ctx)
	}
}

// Publish delivers the event locally and forwards it to the other nodes.
func (e *TimelineEvents) Publish(ctx context.Context, event dto.TimelineEventResponse) {
	if e == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	e.broadcast(event)

	payload, err := json.Marshal(timelineEnvelope{Source: e.nodeID, Event: event})
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to encode timeline event")
		return
	}

	if e.redis != nil && e.redisChannel != "" {
		if err := e.redis.Publish(ctx, e.redisChannel, payload).Err(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to publish timeline event to redis")
		}
	}

	if e.nats != nil && e.natsSubject != "" {
		if err := e.nats.Publish(e.natsSubject, payload); err != nil {
			e.logger.Warn().Err(err).Msg("failed to publish timeline event to nats")
		}
	}
}

// Subscribe registers a local listener. The returned cleanup must be called
// exactly once and closes the channel.
func (e *TimelineEvents) Subscribe() (<-chan dto.TimelineEventResponse, func()) {
	channel := make(chan dto.TimelineEventResponse, timelineEventBufferSize)

	e.mu.Lock()
	e.subscribers[channel] = struct{}{}
	e.mu.Unlock()
	observability.TimelineSubscribers().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, channel)
			close(channel)
			e.mu.Unlock()
			observability.TimelineSubscribers().Dec()
		})
	}

	return channel, cleanup
}

func (e *TimelineEvents) broadcast(event dto.TimelineEventResponse) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			e.logger.Debug().Uint("group_id", event.GroupID).Msg("dropping timeline event for slow subscriber")
		}
	}
}

func (e *TimelineEvents) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() { _ = pubsub.Close() }()

	// The PubSub reconnects and resubscribes on the next receive after a
	// connection error, so only cancellation or a closed client ends the loop.
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			e.logger.Warn().Err(err).Dur("retry_in", e.retryDelay).Msg("timeline redis subscription interrupted")

			timer := time.NewTimer(e.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}
		e.handleRemote([]byte(msg.Payload))
	}
}

func (e *TimelineEvents) consumeNATS(ctx context.Context) {
	sub, err := e.nats.Subscribe(e.natsSubject, func(msg *nats.Msg) {
		e.handleRemote(msg.Data)
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to subscribe to timeline nats subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to drain timeline nats subscription")
		}
	}()
}

func (e *TimelineEvents) handleRemote(payload []byte) {
	var envelope timelineEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		e.logger.Warn().Err(err).Msg("invalid timeline event payload")
		return
	}
	if envelope.Source == e.nodeID {
		return
	}
	e.broadcast(envelope.Event)
}
