package events

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroker publishes notification envelopes over Redis Pub/Sub. The
// push-delivery service subscribes on the other side; this core never waits
// for it.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// UserChannel is the per-recipient notification channel name.
func UserChannel(userID string) string {
	return "notify:user:" + userID
}
