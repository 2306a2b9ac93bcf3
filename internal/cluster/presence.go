package cluster

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceKey is a sorted set of online agents scored by the unix
// millisecond at which their presence lapses.
const PresenceKey = "livechat:agents:online"

// RedisPresence tracks connected agents across processes. An agent stays
// online while some process keeps calling Online for it; an agent whose
// process died lapses after ttl.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisPresence returns presence stored in PresenceKey. Callers refresh
// connected agents more often than ttl.
func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPresence{client: client, ttl: ttl, now: time.Now}
}

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// Online implements livechat.Presence.
func (p *RedisPresence) Online(ctx context.Context, userID string) error {
	until := p.now().Add(p.ttl)
	pipe := p.client.TxPipeline()
	pipe.ZAdd(ctx, PresenceKey, redis.Z{Score: float64(until.UnixMilli()), Member: userID})
	// The key itself goes once no process refreshes anyone.
	pipe.Expire(ctx, PresenceKey, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Offline implements livechat.Presence.
func (p *RedisPresence) Offline(ctx context.Context, userID string) error {
	return p.client.ZRem(ctx, PresenceKey, userID).Err()
}

// Count implements livechat.Presence. Lapsed agents are pruned first.
func (p *RedisPresence) Count(ctx context.Context) (int, error) {
	pipe := p.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, PresenceKey, "-inf", millis(p.now()))
	card := pipe.ZCard(ctx, PresenceKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}
