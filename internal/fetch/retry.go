package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/metrics"
)

// RetryPolicy controls FetchWithRetry.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	RetryDelay time.Duration // wait before retry i is RetryDelay * 2^i
}

// DefaultRetryPolicy retries three times starting at one second.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, RetryDelay: time.Second}

// Backoff returns the wait after the given 0-indexed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.RetryDelay * time.Duration(1<<attempt)
}

// FetchWithRetry behaves like FetchData but retries transient failures
// (network, offline, status 500 and above) with exponential backoff. Attempts
// are sequential. A permanent failure is returned immediately; otherwise the
// last failure is returned once MaxRetries retries are spent.
//
// The call holds one cancellation handle across all attempts and backoff
// waits, so Abort(key) stops the sequence. When a newer call on key replaces
// the handle, the sequence stops with ErrCanceled and leaves the key's state
// to the newer call.
func (o *Orchestrator) FetchWithRetry(ctx context.Context, key string, producer Producer, opts Options, policy RetryPolicy) (any, error) {
	h := newHandle(ctx)
	defer o.release(key, h)

	for attempt := 0; ; attempt++ {
		final := func(err error) bool {
			return attempt >= policy.MaxRetries || !apperr.IsTransient(err)
		}

		v, err := o.fetch(ctx, key, producer, opts, h, final)
		if err == nil || errors.Is(err, ErrCanceled) || final(err) {
			return v, err
		}

		delay := policy.Backoff(attempt)
		metrics.FetchRetries.Inc()
		loggerFor(ctx, key).Debug("retrying fetch",
			"attempt", attempt+1,
			"max_retries", policy.MaxRetries,
			"delay", delay,
			"error", err,
		)

		if werr := o.sleep(h.ctx, delay); werr != nil {
			if errors.Is(werr, context.Canceled) {
				return nil, ErrCanceled
			}
			return nil, err
		}
	}
}
