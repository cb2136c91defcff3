package transport

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisChannel_RoundTrip requires a Redis instance on localhost:6379.
// Skip with: go test -short
func TestRedisChannel_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := RedisConfig{
		Addr:     "localhost:6379",
		DB:       15,
		Inbound:  "upbridge:test:inbound",
		Outbound: "upbridge:test:outbound",
	}
	ch := NewRedisChannel(cfg)
	defer ch.Close()

	if err := ch.Ping(ctx); err != nil {
		t.Skip("Redis not available:", err)
	}

	host := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	defer host.Close()

	commands := host.Subscribe(ctx, cfg.Outbound)
	defer commands.Close()
	_, err := commands.Receive(ctx)
	require.NoError(t, err)

	got := make(chan Message, 1)
	require.NoError(t, ch.Subscribe(ctx, func(_ context.Context, msg Message) error {
		got <- msg
		return nil
	}, nil))

	require.NoError(t, host.Publish(ctx, cfg.Inbound, `{"type":"prefs","content":{"enabled":false}}`).Err())
	select {
	case msg := <-got:
		assert.Equal(t, "prefs", msg.Type)
	case <-ctx.Done():
		t.Fatal("no inbound message")
	}

	require.NoError(t, ch.Dispatch(ctx, Command{Command: "RequestCurrentPrefs"}))
	select {
	case m := <-commands.Channel():
		assert.JSONEq(t, `{"command":"RequestCurrentPrefs"}`, m.Payload)
	case <-ctx.Done():
		t.Fatal("host got no command")
	}
}

func TestNewRedisChannel_DefaultChannels(t *testing.T) {
	ch := NewRedisChannel(RedisConfig{Addr: "localhost:0"})
	defer ch.Close()

	assert.Equal(t, "upbridge:inbound", ch.config.Inbound)
	assert.Equal(t, "upbridge:outbound", ch.config.Outbound)
}
