package limiter

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Javier1112/BookGame/pkg/game"
)

// DefaultBackoff is the shared retry schedule for throttled upstream calls,
// applied to story and image generation alike.
var DefaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Runner wraps every upstream call: each attempt runs inside the limiter,
// and explicit throttling signals are retried per the backoff schedule.
// Any other failure is surfaced immediately.
type Runner struct {
	Limiter *Limiter
	Backoff []time.Duration
}

func NewRunner(l *Limiter, backoff []time.Duration) *Runner {
	if backoff == nil {
		backoff = DefaultBackoff
	}
	return &Runner{Limiter: l, Backoff: backoff}
}

// Do executes fn with bounded concurrency, sleeping through the backoff
// schedule after each throttled attempt. The final attempt's error is
// returned as-is so callers can still distinguish throttling.
func (r *Runner) Do(ctx context.Context, label string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= len(r.Backoff); attempt++ {
		err = r.Limiter.Run(ctx, fn)
		if err == nil || !game.IsThrottled(err) || attempt == len(r.Backoff) {
			return err
		}

		wait := r.Backoff[attempt]
		log.Warn("provider rate limited",
			"label", label, "attempt", attempt+1, "retryIn", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
