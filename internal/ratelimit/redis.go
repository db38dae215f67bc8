package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// INCR plus PEXPIRE on the first hit of a window, in one round trip.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {n, ttl}
`)

// Redis shares a fixed window across every API instance.
type Redis struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(rdb redis.Scripter, prefix string, limit int, window time.Duration) *Redis {
	if prefix == "" {
		prefix = "hypnohub:ratelimit"
	}
	return &Redis{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindow.Run(ctx, r.rdb, []string{r.prefix + ":" + key}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, oops.Code("RATE_LIMIT_FAILED").With("key", key).Wrap(err)
	}
	if len(res) != 2 {
		return Decision{}, oops.Code("RATE_LIMIT_FAILED").With("key", key).Errorf("unexpected script reply of length %d", len(res))
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = r.window
	}

	if count > r.limit {
		return Decision{Allowed: false, Limit: r.limit, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Limit: r.limit, Remaining: r.limit - count}, nil
}
