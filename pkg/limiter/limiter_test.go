package limiter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Javier1112/BookGame/pkg/game"
	"github.com/Javier1112/BookGame/pkg/limiter"
)

func TestLimiterNeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 4} {
		lim := limiter.New(capacity)

		var active, peak, runs atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := lim.Run(context.Background(), func() error {
					cur := active.Add(1)
					for {
						p := peak.Load()
						if cur <= p || peak.CompareAndSwap(p, cur) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					active.Add(-1)
					runs.Add(1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, peak.Load(), int64(capacity), "capacity %d", capacity)
		assert.Equal(t, int64(32), runs.Load(), "every queued task runs exactly once")
	}
}

func TestLimiterReleasesSlotOnError(t *testing.T) {
	lim := limiter.New(1)
	err := lim.Run(context.Background(), func() error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)

	// The slot must be free again.
	done := make(chan struct{})
	go func() {
		_ = lim.Run(context.Background(), func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("slot was not released after a failing task")
	}
}

func TestLimiterAcquireHonorsContext(t *testing.T) {
	lim := limiter.New(1)
	require.NoError(t, lim.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lim.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The queued waiter must have been removed: releasing once frees the
	// only slot and a fresh acquire succeeds immediately.
	lim.Release()
	require.NoError(t, lim.Acquire(context.Background()))
	lim.Release()
}

func TestLimiterWaitersRunInArrivalOrder(t *testing.T) {
	lim := limiter.New(1)
	require.NoError(t, lim.Acquire(context.Background()))

	const waiters = 5
	order := make(chan int, waiters)
	started := make(chan struct{}, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			require.NoError(t, lim.Acquire(context.Background()))
			order <- i
			lim.Release()
		}(i)
		<-started
		// Give the goroutine time to enqueue before the next one starts.
		time.Sleep(10 * time.Millisecond)
	}

	lim.Release()
	wg.Wait()
	close(order)

	got := make([]int, 0, waiters)
	for i := range order {
		got = append(got, i)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestRunnerRetriesThrottledPerSchedule(t *testing.T) {
	lim := limiter.New(2)
	backoff := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	runner := limiter.NewRunner(lim, backoff)

	var calls atomic.Int64
	err := runner.Do(context.Background(), "test", func() error {
		if calls.Add(1) <= 2 {
			return &game.ThrottledError{Provider: "test", Body: "slow down"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestRunnerSurfacesThrottleAfterScheduleExhausted(t *testing.T) {
	runner := limiter.NewRunner(limiter.New(1), []time.Duration{time.Millisecond})

	var calls atomic.Int64
	err := runner.Do(context.Background(), "test", func() error {
		calls.Add(1)
		return &game.ThrottledError{Provider: "test", Body: "always"}
	})
	require.True(t, game.IsThrottled(err))
	assert.Equal(t, int64(2), calls.Load(), "one initial attempt plus one retry")
}

func TestRunnerDoesNotRetryOtherFailures(t *testing.T) {
	runner := limiter.NewRunner(limiter.New(1), []time.Duration{time.Millisecond})

	var calls atomic.Int64
	err := runner.Do(context.Background(), "test", func() error {
		calls.Add(1)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, int64(1), calls.Load())
}
