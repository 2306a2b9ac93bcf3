package cluster

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/solar-support-backend/internal/livechat"
)

// Channel is the pub/sub channel live chat envelopes travel on.
const Channel = "livechat:events"

// Envelope is one published broadcast.
type Envelope struct {
	Audience livechat.Audience `json:"audience"`
	Event    livechat.Event    `json:"event"`
}

func encode(a livechat.Audience, ev livechat.Event) ([]byte, error) {
	return json.Marshal(Envelope{Audience: a, Event: ev})
}

func decode(payload string) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal([]byte(payload), &env)
	return env, err
}

// RedisFanout publishes broadcasts to Redis. Every process, this one
// included, delivers them to its own registry from Run.
type RedisFanout struct {
	client *redis.Client
	reg    livechat.Registry
	log    zerolog.Logger
}

// NewRedisFanout returns a fanout delivering into reg.
func NewRedisFanout(client *redis.Client, reg livechat.Registry) *RedisFanout {
	return &RedisFanout{client: client, reg: reg, log: log.With().Str("component", "cluster").Logger()}
}

// Publish implements livechat.Fanout.
func (f *RedisFanout) Publish(ctx context.Context, a livechat.Audience, ev livechat.Event) error {
	b, err := encode(a, ev)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return f.client.Publish(ctx, Channel, b).Err()
}

// Run subscribes to Channel and delivers envelopes locally until ctx ends.
func (f *RedisFanout) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
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
			f.deliver(msg.Payload)
		}
	}
}

func (f *RedisFanout) deliver(payload string) {
	env, err := decode(payload)
	if err != nil {
		f.log.Warn().Err(err).Msg("dropping malformed envelope")
		return
	}
	f.reg.Broadcast(env.Event, env.Audience.Match)
}
