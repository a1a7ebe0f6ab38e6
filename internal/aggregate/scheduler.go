package aggregate

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler fires a job once a day at a fixed local hour. A tick that
// arrives while the previous job still runs is absorbed by the engine's
// single-flight guard, not queued.
type Scheduler struct {
	hour int
	job  func(context.Context)
	now  func() time.Time
}

func NewScheduler(hour int, job func(context.Context)) *Scheduler {
	return &Scheduler{hour: hour, job: job, now: time.Now}
}

// NextRun returns the next wall-clock firing after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.NextRun(s.now())
		log.Info().Time("next_run", next).Msg("Aggregation scheduled")

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopped")
			return
		case <-timer.C:
			log.Info().Msg("Scheduled aggregation triggered")
			s.job(ctx)
		}
	}
}
