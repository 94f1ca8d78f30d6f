package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures exponential retries.
type RetryConfig struct {
	Attempts     uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// Permanent wraps err so Retry gives up immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs fn until it succeeds, returns a permanent error, runs out of
// attempts or ctx is done.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		eb.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		eb.MaxInterval = cfg.MaxDelay
	}
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if cfg.Attempts > 0 {
		b = backoff.WithMaxRetries(b, cfg.Attempts-1)
	}
	return backoff.Retry(fn, backoff.WithContext(b, ctx))
}
