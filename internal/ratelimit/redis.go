package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// slidingLog trims the sorted set to the window, then either records the
// call (returns 0) or returns the milliseconds until the oldest entry ages out
var slidingLog = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return 0
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + window - now
if wait < 1 then wait = 1 end
return wait
`)

// RedisLimiter shares one sliding log between every process using the same
// key, so replicas polling with one API key stay inside its quota together
type RedisLimiter struct {
	redis    *redis.Client
	key      string
	maxCalls int
	period   time.Duration
	now      func() time.Time
}

// NewRedisLimiter creates a limiter whose state lives under rl:<key>
func NewRedisLimiter(client *redis.Client, key string, maxCalls int, period time.Duration) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client is nil")
	}
	if maxCalls < 1 || period <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid limits %d per %s", maxCalls, period)
	}
	return &RedisLimiter{
		redis:    client,
		key:      "rl:" + key,
		maxCalls: maxCalls,
		period:   period,
		now:      time.Now,
	}, nil
}

// Acquire blocks until the shared window has room or ctx is done
func (r *RedisLimiter) Acquire(ctx context.Context) error {
	for {
		now := r.now().UnixMilli()
		waitMs, err := slidingLog.Run(ctx, r.redis,
			[]string{r.key},
			now, r.period.Milliseconds(), r.maxCalls,
			fmt.Sprintf("%d-%s", now, uuid.NewString()),
		).Int64()
		if err != nil {
			return fmt.Errorf("ratelimit: redis acquire %s: %w", r.key, err)
		}
		if waitMs == 0 {
			return nil
		}

		timer := time.NewTimer(time.Duration(waitMs)*time.Millisecond + SafetyMargin)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Count returns the number of calls recorded in the current window
func (r *RedisLimiter) Count(ctx context.Context) (int64, error) {
	lo := fmt.Sprintf("(%d", r.now().Add(-r.period).UnixMilli())
	return r.redis.ZCount(ctx, r.key, lo, "+inf").Result()
}
