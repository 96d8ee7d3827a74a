// Package ratelimit provides an in-process sliding-window admission
// controller for outbound provider calls.
// ⭐ SSOT: 외부 API 호출 예산은 이 리미터에서만 관리
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// maxSleepSlice caps a single wait so Acquire stays responsive to
// context cancellation while blocked.
const maxSleepSlice = time.Second

// Limiter admits at most maxCalls calls in any sliding window of the
// configured duration. Safe for concurrent use: the check-and-append is
// a single critical section under one mutex.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter admitting maxCalls per window.
func New(maxCalls int, window time.Duration) *Limiter {
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		calls:    make([]time.Time, 0, maxCalls),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Acquire blocks until an admission is granted or ctx is cancelled.
// Granting never fails on its own; the only error is ctx.Err().
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}

		if wait > maxSleepSlice {
			wait = maxSleepSlice
		}
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAcquire performs one admission attempt. On refusal it returns the
// time until the oldest admission leaves the window.
func (l *Limiter) tryAcquire() (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Discard admissions that fell out of the window.
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}

	if len(l.calls) < l.maxCalls {
		l.calls = append(l.calls, now)
		return 0, true
	}

	return l.calls[0].Add(l.window).Sub(now), false
}

// InFlight returns the number of admissions currently inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.calls {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
