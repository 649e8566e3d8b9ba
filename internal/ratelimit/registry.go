package ratelimit

import (
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/rajasatyajit/VesselWatch/internal/logger"
)

// Registry hands out one limiter per API key. Adapters that share a key
// share a bucket; a reconnecting stream never touches another key's state.
type Registry struct {
	mu       sync.Mutex
	redis    *redis.Client
	limiters map[string]Acquirer
}

// NewRegistry creates a registry. With a nil client limiters are in-process.
func NewRegistry(client *redis.Client) *Registry {
	return &Registry{redis: client, limiters: make(map[string]Acquirer)}
}

// For returns the limiter for key, creating it on first use. Later calls
// with different limits return the existing limiter unchanged.
func (r *Registry) For(key string, maxCalls int, period time.Duration) (Acquirer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[key]; ok {
		return l, nil
	}

	var (
		l   Acquirer
		err error
	)
	if r.redis != nil {
		l, err = NewRedisLimiter(r.redis, key, maxCalls, period)
	} else {
		l, err = New(maxCalls, period)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("rate limiter created", "key", key, "max_calls", maxCalls, "period", period, "shared", r.redis != nil)
	r.limiters[key] = l
	return l, nil
}

// Len returns the number of distinct limiters
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
