package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/config"
	redisclient "github.com/fluxpro/relay-server-go/internal/redis"
)

// Deduplicator reports whether a provider message id was already delivered.
// Forget releases an id whose delivery failed so a redelivery goes through.
type Deduplicator interface {
	Seen(ctx context.Context, messageID string) bool
	Forget(ctx context.Context, messageID string)
}

type RedisDeduplicator struct {
	client *redis.Client
}

func NewRedisDeduplicator(client *redis.Client) *RedisDeduplicator {
	return &RedisDeduplicator{client: client}
}

// Seen marks messageID as delivered. Redis failures count as "not seen" so a
// flaky cache never drops messages.
func (d *RedisDeduplicator) Seen(ctx context.Context, messageID string) bool {
	ok, err := d.client.SetNX(ctx, redisclient.MessageDedupKey(messageID), 1, config.MessageDedupTTL).Result()
	if err != nil {
		log.Warn().Err(err).Str("messageId", messageID).Msg("dedup check failed, treating as new")
		return false
	}
	return !ok
}

func (d *RedisDeduplicator) Forget(ctx context.Context, messageID string) {
	if err := d.client.Del(ctx, redisclient.MessageDedupKey(messageID)).Err(); err != nil {
		log.Warn().Err(err).Str("messageId", messageID).Msg("failed to release dedup key")
	}
}
