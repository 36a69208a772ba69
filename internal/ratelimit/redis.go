package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is the shared-counter implementation for multi-instance
// deployments. Same window semantics as MemoryLimiter: a denied call does
// not advance the counter.
type RedisLimiter struct {
	client       *redis.Client
	windowLength time.Duration
	limits       map[string]int
	defaultLimit int
}

func NewRedisLimiter(client *redis.Client, windowLength time.Duration, limits map[string]int) *RedisLimiter {
	if windowLength <= 0 {
		windowLength = time.Hour
	}
	return &RedisLimiter{
		client:       client,
		windowLength: windowLength,
		limits:       limits,
		defaultLimit: DefaultLimit,
	}
}

func (l *RedisLimiter) Admit(ctx context.Context, tenantID int64, scope string) (Decision, error) {
	limit := limitFor(scope, l.limits, l.defaultLimit)
	key := fmt.Sprintf("ratelimit:%d:%s", tenantID, scope)

	res, err := windowScript.Run(ctx, l.client, []string{key}, limit, l.windowLength.Milliseconds()).Result()
	if err != nil {
		return Decision{}, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 3 {
		return Decision{}, fmt.Errorf("unexpected script result: %v", res)
	}

	allowed := arr[0].(int64) == 1
	count := int(arr[1].(int64))
	ttlMillis := arr[2].(int64)
	resetAt := time.Now().Add(time.Duration(ttlMillis) * time.Millisecond)

	return Decision{Allowed: allowed, Count: count, Limit: limit, ResetAt: resetAt}, nil
}

var windowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= limit then
  return {0, current, redis.call('PTTL', KEYS[1])}
end

current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return {1, current, redis.call('PTTL', KEYS[1])}
`)
