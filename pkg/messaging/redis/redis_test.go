package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-sync/pkg/messaging"
)

func newTestBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewBroker(client, zerolog.Nop())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	b := newTestBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, messaging.ChannelStateEvents)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, messaging.ChannelStateEvents, messaging.Message{Type: "emergency.raised"}))

	select {
	case payload := <-ch:
		var msg messaging.Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, "emergency.raised", msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisBrokerSubscriptionEndsWithContext(t *testing.T) {
	b := newTestBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "x")
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{URL: "://nope"})
	assert.Error(t, err)
}
