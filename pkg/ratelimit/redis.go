package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = current unix time in seconds (fractional)
// ARGV[4] = key ttl in seconds
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tostring(tokens), "last_refill", tostring(last_refill))
redis.call("EXPIRE", key, ttl)

return allowed
`)

// RedisLimiter shares token buckets between server instances through Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	rps    float64
	burst  int
	now    func() time.Time
}

// NewRedisLimiter creates a RedisLimiter. Keys are stored as
// "<prefix>:<key>".
func NewRedisLimiter(client redis.UniversalClient, prefix string, rps float64, burst int) *RedisLimiter {
	if prefix == "" {
		prefix = "wkc:ratelimit"
	}
	if rps <= 0 {
		rps = 1
	}
	return &RedisLimiter{client: client, prefix: prefix, rps: rps, burst: burst, now: time.Now}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(l.now().UnixMicro()) / 1e6
	// A bucket refills completely in burst/rps seconds; keep it a little longer.
	ttl := int(float64(l.burst)/l.rps) + 60

	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, l.rps, l.burst, now, ttl).Int64()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return res == 1, nil
}
