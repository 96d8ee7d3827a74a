package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the limiter sleeps, so tests run instantly.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	log []time.Time // admission timestamps recorded by the test
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(maxCalls int, window time.Duration, clock *fakeClock) *Limiter {
	l := New(maxCalls, window)
	l.now = clock.now
	l.sleep = clock.sleep
	return l
}

func TestAcquire_UnderBudgetIsImmediate(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(3, time.Minute, clock)

	start := clock.now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	assert.Equal(t, start, clock.now(), "no sleeping while under budget")
	assert.Equal(t, 3, l.InFlight())
}

func TestAcquire_BlocksUntilWindowFrees(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, time.Minute, clock)

	require.NoError(t, l.Acquire(context.Background()))
	clock.advance(10 * time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	// Third call must wait until the first admission leaves the window,
	// i.e. 50 more seconds.
	before := clock.now()
	require.NoError(t, l.Acquire(context.Background()))
	waited := clock.now().Sub(before)
	assert.GreaterOrEqual(t, waited, 50*time.Second)
	assert.Less(t, waited, 52*time.Second)
}

func TestAcquire_NeverExceedsBudgetInAnyWindow(t *testing.T) {
	const (
		maxCalls = 5
		total    = 40
	)
	window := 10 * time.Second

	clock := newFakeClock()
	l := newTestLimiter(maxCalls, window, clock)

	var admissions []time.Time
	for i := 0; i < total; i++ {
		require.NoError(t, l.Acquire(context.Background()))
		admissions = append(admissions, clock.now())
	}

	// Sliding-window property: every span of `window` holds at most maxCalls.
	for i := range admissions {
		count := 0
		for j := i; j < len(admissions); j++ {
			if admissions[j].Sub(admissions[i]) < window {
				count++
			}
		}
		assert.LessOrEqual(t, count, maxCalls,
			"window starting at admission %d holds %d calls", i, count)
	}
}

func TestAcquire_ConcurrentCallersRespectBudget(t *testing.T) {
	// Real clock, short window: hammer the limiter from many goroutines
	// and verify the recorded admissions obey the budget.
	const (
		maxCalls = 4
		callers  = 16
	)
	window := 100 * time.Millisecond

	l := New(maxCalls, window)

	var (
		mu         sync.Mutex
		admissions []time.Time
		wg         sync.WaitGroup
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			admissions = append(admissions, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, admissions, callers)
	for i, start := range admissions {
		count := 0
		for _, ts := range admissions {
			diff := ts.Sub(start)
			if diff >= 0 && diff < window-5*time.Millisecond {
				count++
			}
		}
		assert.LessOrEqual(t, count, maxCalls, "window %d over budget", i)
	}
}

func TestAcquire_CancelledContext(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(1, time.Minute, clock)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
