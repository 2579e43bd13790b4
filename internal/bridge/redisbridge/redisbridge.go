package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campuslink/realtime/internal/core"
)

const channel = "campuslink:realtime:topics"

// envelope is the wire form of a mirrored topic event. Instance tags
// the origin process so a subscriber can skip its own publications.
type envelope struct {
	Instance string     `json:"instance"`
	Topic    string     `json:"topic"`
	Event    core.Event `json:"event"`
}

// Bridge mirrors topic publishes to a Redis channel and re-broadcasts
// events published by other server processes. It implements
// core.Bridge. Presence stays process-local; only topic fan-out
// crosses instances.
type Bridge struct {
	rdb      *redis.Client
	instance string
	log      *zerolog.Logger
}

// New connects to Redis at addr.
func New(ctx context.Context, addr string, logger *zerolog.Logger) (*Bridge, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Bridge{
		rdb:      rdb,
		instance: uuid.NewString(),
		log:      logger,
	}, nil
}

// Publish mirrors a locally published event to the shared channel.
// Fire-and-forget: a Redis failure only loses the cross-process copy.
func (b *Bridge) Publish(ctx context.Context, topic string, ev *core.Event) {
	payload, err := json.Marshal(envelope{
		Instance: b.instance,
		Topic:    topic,
		Event:    *ev,
	})
	if err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("marshal bridge envelope")
		return
	}
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("publish to redis")
	}
}

// Run subscribes to the shared channel and feeds remote-origin events
// into local, until ctx is canceled. local must not mirror back to the
// bridge (use Broadcaster.PublishLocal).
func (b *Bridge) Run(ctx context.Context, local func(topic string, ev *core.Event)) {
	sub := b.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn().Err(err).Msg("unmarshal bridge envelope")
				continue
			}
			if env.Instance == b.instance {
				continue
			}
			local(env.Topic, &env.Event)

		case <-ctx.Done():
			return
		}
	}
}

// Close releases the Redis connection.
func (b *Bridge) Close() error {
	if err := b.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
