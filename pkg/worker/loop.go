package worker

import (
	"context"
	"time"
)

// Every calls fn immediately and then on each tick until ctx is done.
// Errors from fn are passed to onErr and never stop the loop.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context) error, onErr func(error)) {
	run := func() {
		if err := fn(ctx); err != nil && onErr != nil {
			onErr(err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
