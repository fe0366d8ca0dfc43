package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to TEST_REDIS_URL and flushes it. Tests are skipped
// when the variable is not set or the server is unreachable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("redis not reachable")
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func TestRateLimiter_Basic(t *testing.T) {
	redisClient := setupTestRedis(t)
	defer redisClient.Close()

	ctx := context.Background()
	limiter := NewRateLimiter(redisClient)

	t.Run("allows requests within limit", func(t *testing.T) {
		key := "test:user1"
		limit := 3
		window := 10 * time.Second

		for i := 0; i < limit; i++ {
			allowed, _ := limiter.CheckLimit(ctx, key, limit, window)
			assert.True(t, allowed, "Request %d should be allowed", i+1)
		}

		allowed, resetAt := limiter.CheckLimit(ctx, key, limit, window)
		assert.False(t, allowed, "Request should be rate limited")
		assert.True(t, resetAt.After(time.Now()), "Reset time should be in future")
	})

	t.Run("sliding window behavior", func(t *testing.T) {
		key := "test:user2"
		limit := 2
		window := 2 * time.Second

		allowed, _ := limiter.CheckLimit(ctx, key, limit, window)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, key, limit, window)
		assert.True(t, allowed)

		allowed, _ = limiter.CheckLimit(ctx, key, limit, window)
		assert.False(t, allowed)

		// Wait for window to pass
		time.Sleep(3100 * time.Millisecond)

		allowed, _ = limiter.CheckLimit(ctx, key, limit, window)
		assert.True(t, allowed)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		limit := 1
		window := 10 * time.Second

		allowed, _ := limiter.CheckLimit(ctx, "test:independent1", limit, window)
		assert.True(t, allowed)
		allowed, _ = limiter.CheckLimit(ctx, "test:independent1", limit, window)
		assert.False(t, allowed)

		allowed, _ = limiter.CheckLimit(ctx, "test:independent2", limit, window)
		assert.True(t, allowed)
	})
}

func TestRateLimiter_GracefulFailure(t *testing.T) {
	invalidClient := redis.NewClient(&redis.Options{
		Addr:        "localhost:9999", // Invalid port
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer invalidClient.Close()

	limiter := NewRateLimiter(invalidClient)

	allowed, resetAt := limiter.CheckLimit(context.Background(), "test:key", 1, time.Minute)
	require.True(t, allowed, "Should gracefully allow request on Redis failure")
	require.True(t, resetAt.After(time.Now()), "Should return valid reset time")
}

func TestRedisDeduplicator(t *testing.T) {
	t.Run("first delivery is new, redelivery is seen", func(t *testing.T) {
		redisClient := setupTestRedis(t)
		defer redisClient.Close()

		dedup := NewRedisDeduplicator(redisClient)
		ctx := context.Background()

		assert.False(t, dedup.Seen(ctx, "m_1"))
		assert.True(t, dedup.Seen(ctx, "m_1"))
		assert.False(t, dedup.Seen(ctx, "m_2"))
	})

	t.Run("redis failure counts as not seen", func(t *testing.T) {
		invalidClient := redis.NewClient(&redis.Options{
			Addr:        "localhost:9999",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer invalidClient.Close()

		dedup := NewRedisDeduplicator(invalidClient)
		assert.False(t, dedup.Seen(context.Background(), "m_1"))
		assert.False(t, dedup.Seen(context.Background(), "m_1"))
	})
}
