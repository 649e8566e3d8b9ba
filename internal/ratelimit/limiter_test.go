package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_InvalidArguments(t *testing.T) {
	if _, err := New(0, time.Second); err == nil {
		t.Error("expected error for zero maxCalls")
	}
	if _, err := New(1, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestLimiter_BlocksCallBeyondMax(t *testing.T) {
	const period = 300 * time.Millisecond
	l, err := New(3, period)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first calls should not block, took %s", elapsed)
	}

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire 4: %v", err)
	}
	if elapsed := time.Since(start); elapsed < period {
		t.Fatalf("fourth call returned after %s, expected to wait at least %s", elapsed, period)
	}
}

func TestLimiter_ContextCancel(t *testing.T) {
	l, _ := New(1, time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got := l.InFlight(); got != 1 {
		t.Errorf("cancelled acquire must not consume a slot, in flight = %d", got)
	}
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	l, _ := New(5, 400*time.Millisecond)
	ctx := context.Background()

	var fast int32
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Error(err)
				return
			}
			if time.Since(start) < 200*time.Millisecond {
				atomic.AddInt32(&fast, 1)
			}
		}()
	}
	wg.Wait()

	if fast != 5 {
		t.Fatalf("expected exactly 5 immediate acquisitions, got %d", fast)
	}
}

func TestLimiter_PruneWithFakeClock(t *testing.T) {
	l, _ := New(2, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if _, ok := l.tryAcquire(); !ok {
		t.Fatal("first call should pass")
	}
	now = now.Add(20 * time.Second)
	if _, ok := l.tryAcquire(); !ok {
		t.Fatal("second call should pass")
	}

	wait, ok := l.tryAcquire()
	if ok {
		t.Fatal("third call should be refused")
	}
	if want := 40*time.Second + SafetyMargin; wait != want {
		t.Errorf("wait = %s, want %s", wait, want)
	}

	now = now.Add(40 * time.Second)
	if _, ok := l.tryAcquire(); !ok {
		t.Fatal("call after the oldest entry aged out should pass")
	}
	if got := l.InFlight(); got != 2 {
		t.Errorf("in flight = %d, want 2", got)
	}
}
