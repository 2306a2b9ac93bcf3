package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/solar-support-backend/internal/livechat"
)

func TestRedisPresence_DefaultTTL(t *testing.T) {
	_, client := newMiniredis(t)
	assert.Equal(t, 24*time.Hour, NewRedisPresence(client, 0).ttl)
}

func TestRedisPresence_ConnectedAgentStaysOnline(t *testing.T) {
	mr, client := newMiniredis(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewRedisPresence(client, 2*time.Minute)
	p.now = func() time.Time { return now }
	advance := func(d time.Duration) {
		now = now.Add(d)
		mr.FastForward(d)
	}

	d := livechat.NewDispatcher(livechat.NewHub(), memStore{}, livechat.WithPresence(p), livechat.WithLogger(zerolog.Nop()))
	agent := livechat.NewConn(nil, 32)
	require.NoError(t, d.Handle(ctx, agent, []byte(`{"type":"join","userId":"a1","username":"Nikos","isAgent":true}`)))

	n, err := p.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Refreshing more often than the ttl keeps the agent online well past it.
	for range 6 {
		advance(30 * time.Second)
		d.RefreshPresence(ctx)
	}
	n, err = p.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "agent still connected after 3m")

	d.Leave(ctx, agent)
	n, err = p.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisPresence_AgentOfDeadProcessLapses(t *testing.T) {
	mr, client := newMiniredis(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	alive := NewRedisPresence(client, 2*time.Minute)
	dead := NewRedisPresence(client, 2*time.Minute)
	alive.now = func() time.Time { return now }
	dead.now = alive.now

	require.NoError(t, dead.Online(ctx, "a-dead"))
	for range 6 {
		now = now.Add(30 * time.Second)
		mr.FastForward(30 * time.Second)
		require.NoError(t, alive.Online(ctx, "a-alive"))
	}

	n, err := alive.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	members, err := client.ZRange(ctx, PresenceKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-alive"}, members)
}

func TestRedisPresence_KeyExpiresWhenNobodyRefreshes(t *testing.T) {
	mr, client := newMiniredis(t)
	p := NewRedisPresence(client, time.Minute)
	require.NoError(t, p.Online(context.Background(), "a1"))
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(PresenceKey))
}

func TestRedisPresence_Errors(t *testing.T) {
	mr, client := newMiniredis(t)
	p := NewRedisPresence(client, time.Minute)
	mr.Close()
	ctx := context.Background()
	assert.Error(t, p.Online(ctx, "a1"))
	assert.Error(t, p.Offline(ctx, "a1"))
	_, err := p.Count(ctx)
	assert.Error(t, err)
}
