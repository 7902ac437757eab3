package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rt:"

// compareAndSwapLua swaps KEYS[1] from ARGV[1] to ARGV[2] in one step.
// An empty ARGV[2] deletes the key; otherwise the TTL is reset to ARGV[3] ms.
var compareAndSwapLua = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current ~= ARGV[1] then
  return 0
end
if ARGV[2] == '' then
  redis.call('DEL', KEYS[1])
else
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// RedisRepository keeps one key per user holding the hash. Keys expire
// together with the refresh token, so an abandoned session cleans itself up.
type RedisRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisRepository(client redis.Cmdable, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func redisKey(userID string) string { return redisKeyPrefix + userID }

func (r *RedisRepository) Get(ctx context.Context, userID string) (string, error) {
	hash, err := r.client.Get(ctx, redisKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis error: %w", err)
	}
	return hash, nil
}

func (r *RedisRepository) Set(ctx context.Context, userID string, hash string) error {
	var err error
	if hash == "" {
		err = r.client.Del(ctx, redisKey(userID)).Err()
	} else {
		err = r.client.Set(ctx, redisKey(userID), hash, r.ttl).Err()
	}
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) CompareAndSwap(ctx context.Context, userID string, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	swapped, err := compareAndSwapLua.Run(ctx, r.client,
		[]string{redisKey(userID)},
		expected, next, r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return swapped == 1, nil
}
