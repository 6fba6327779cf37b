package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSweeper schedules Sweep every interval on the engine's clock. The
// returned function stops the scheduler.
func (e *Engine) StartSweeper(interval time.Duration) (func() error, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(e.clock.Clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval+5*time.Second)
			defer cancel()
			n, err := e.Sweep(ctx)
			if err != nil {
				e.log.Error("sweep failed", "error", err)
				return
			}
			if n > 0 {
				e.log.Debug("sweep advanced matches", "count", n)
			}
		}),
		gocron.WithName("match-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	s.Start()
	e.log.Info("sweeper started", "interval", interval)
	return s.Shutdown, nil
}
