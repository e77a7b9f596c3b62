package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one unit of recurring work.
type Task func(ctx context.Context) error

// Every runs task on each tick of interval until ctx is done. The first run
// happens one interval after the call. Task errors are logged and do not stop
// the loop. Every blocks; run it on its own goroutine.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("task", name).Msg("scheduler stopped")
			return
		case <-t.C:
			if err := task(ctx); err != nil {
				log.Error().Err(err).Str("task", name).Msg("scheduled task failed")
			}
		}
	}
}
