package lib

import (
	"context"
	"fmt"
	"os"
	"time"

	"tablebook/src/logger"
	"tablebook/src/types"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		logger.Get().Error().Err(err).Msg("error parsing redis connection string")
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// ErrLockHeld classifies as a status conflict for API callers.
var ErrLockHeld = fmt.Errorf("lock held by another request: %w", types.ErrStatusConflict)

// RedisLocker is a best-effort mutex keyed by name. A lock expires after its TTL
// so a crashed holder cannot block the key forever.
type RedisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	token  func() string
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, prefix: "locks:", token: uuid.NewString}
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock takes key or fails with ErrLockHeld. The returned func releases it.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := l.token()
	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrLockHeld)
	}
	return func() {
		if err := releaseScript.Run(context.Background(), l.rdb, []string{k}, token).Err(); err != nil {
			logger.Get().Warn().Err(err).Str("key", k).Msg("could not release lock")
		}
	}, nil
}
