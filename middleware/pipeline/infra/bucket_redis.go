package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"model-gateway/middleware/pipeline/domain"
)

// tokenBucketScript is the continuous refill-on-read token bucket. It runs
// server-side so the read-refill-take sequence is atomic per key: concurrent
// gateway instances can never act on the same stale counter.
//
// Returns the remaining tokens as a string on success, "-1" on deny (no
// mutation). The key expiry is computed by the caller (RateRule.TTL), which
// also covers a zero-rate rule.
const tokenBucketScript = `
local key   = KEYS[1]
local burst = tonumber(ARGV[1])
local rate  = tonumber(ARGV[2])
local now   = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "time")
local tokens = tonumber(data[1])
local last   = tonumber(data[2])

if tokens == nil then
    tokens = burst
    last   = now
else
    local delta = (now - last) / 1000.0
    if delta > 0 then
        tokens = math.min(burst, tokens + delta * rate)
    end
end

if tokens >= 1 then
    tokens = tokens - 1
    redis.call("HMSET", key, "tokens", tokens, "time", now)
    redis.call("EXPIRE", key, ttl)
    return tostring(tokens)
end
return "-1"
`

// RedisBucketStore is the shared admission store used when the gateway runs
// as multiple instances.
type RedisBucketStore struct {
	rdb    redis.UniversalClient
	script *redis.Script
}

func NewRedisBucketStore(rdb redis.UniversalClient) *RedisBucketStore {
	return &RedisBucketStore{
		rdb:    rdb,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Take performs one atomic admission check. Store unavailability is returned
// as an error; the caller decides the failure mode (the gateway fails
// closed).
func (s *RedisBucketStore) Take(ctx context.Context, key string, rule domain.RateRule, now time.Time) (domain.Lease, error) {
	res, err := s.script.Run(ctx, s.rdb, []string{key},
		rule.Burst, rule.Rate, now.UnixMilli(), int(rule.TTL().Seconds()),
	).Result()
	if err != nil {
		return domain.Lease{}, fmt.Errorf("token bucket script: %w", err)
	}

	tokens, err := scriptFloat(res)
	if err != nil {
		return domain.Lease{}, err
	}
	if tokens < 0 {
		return domain.Lease{}, nil
	}
	return domain.Lease{Allowed: true, Remaining: tokens}, nil
}

func scriptFloat(res any) (float64, error) {
	switch v := res.(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("token bucket script returned %q: %w", v, err)
		}
		return f, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("token bucket script returned %T", res)
	}
}
