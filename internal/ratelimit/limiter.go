package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SafetyMargin is added to every computed wait so a woken caller does not
// race the expiry of the entry it was waiting on
const SafetyMargin = 50 * time.Millisecond

// Acquirer blocks until the caller may issue one call
type Acquirer interface {
	Acquire(ctx context.Context) error
}

// Limiter is an in-process sliding-log limiter allowing at most maxCalls
// within any window of length period. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time
	now      func() time.Time
}

// New creates a limiter for maxCalls per period
func New(maxCalls int, period time.Duration) (*Limiter, error) {
	if maxCalls < 1 {
		return nil, fmt.Errorf("ratelimit: maxCalls must be at least 1, got %d", maxCalls)
	}
	if period <= 0 {
		return nil, fmt.Errorf("ratelimit: period must be positive, got %s", period)
	}
	return &Limiter{
		maxCalls: maxCalls,
		period:   period,
		calls:    make([]time.Time, 0, maxCalls),
		now:      time.Now,
	}, nil
}

// Acquire blocks until a slot is free or ctx is done
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire records a call if the window has room, otherwise returns how
// long until the oldest entry expires
func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.calls) < l.maxCalls {
		l.calls = append(l.calls, now)
		return 0, true
	}

	wait := l.calls[0].Add(l.period).Sub(now) + SafetyMargin
	if wait < SafetyMargin {
		wait = SafetyMargin
	}
	return wait, false
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.period)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// InFlight returns the number of calls inside the current window
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.calls)
}
