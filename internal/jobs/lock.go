package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker guards the execution step of one order against overlapping runs.
// release must be called when acquired is true.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// NopLocker always grants the lock; overlapping runs rely on the cooldown check alone.
type NopLocker struct{}

func (NopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "profitshare:lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The run context may already be cancelled; the key must still be released.
		if err := releaseScript.Run(context.Background(), l.client, []string{fullKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", fullKey).Msg("failed to release lock")
		}
	}
	return release, true, nil
}
