package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Deduper remembers report keys. Seen returns true when key was already
// recorded, and records it otherwise. Forget drops a key recorded for a
// report that was never accepted, so a redelivery is not taken for a duplicate.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// MemoryDeduper keeps the most recent capacity keys in process
type MemoryDeduper struct {
	mu sync.Mutex
	// keys maps each remembered key to its slot in order
	keys  map[string]int
	order []string
	next  int
}

// NewMemoryDeduper creates a bounded deduper. Once full, the oldest key is forgotten.
func NewMemoryDeduper(capacity int) *MemoryDeduper {
	if capacity < 1 {
		capacity = 100_000
	}
	return &MemoryDeduper{
		keys:  make(map[string]int, capacity),
		order: make([]string, 0, capacity),
	}
}

func (d *MemoryDeduper) Seen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.keys[key]; ok {
		return true, nil
	}
	slot := len(d.order)
	if slot < cap(d.order) {
		d.order = append(d.order, key)
	} else {
		slot = d.next
		// a forgotten key may have been recorded again in a newer slot
		old := d.order[slot]
		if at, ok := d.keys[old]; ok && at == slot {
			delete(d.keys, old)
		}
		d.order[slot] = key
		d.next = (d.next + 1) % len(d.order)
	}
	d.keys[key] = slot
	return false, nil
}

// Forget removes key. Its ring slot is reclaimed when the ring next passes it.
func (d *MemoryDeduper) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

// Len returns the number of remembered keys
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.keys)
}

// RedisDeduper shares seen keys between instances with SET NX and a TTL
type RedisDeduper struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) (*RedisDeduper, error) {
	if client == nil {
		return nil, fmt.Errorf("pipeline: redis client is nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{redis: client, ttl: ttl}, nil
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.redis.SetNX(ctx, "dedup:"+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", key, err)
	}
	return !ok, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	if err := d.redis.Del(ctx, "dedup:"+key).Err(); err != nil {
		return fmt.Errorf("forget %s: %w", key, err)
	}
	return nil
}
