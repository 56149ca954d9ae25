package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nurpe/sid-bonds/internal/service"
)

type Sweeper interface {
	SweepOverdue(ctx context.Context) (service.SweepResult, error)
}

// Scheduler runs the overdue guarantee sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     zerolog.Logger
}

func NewScheduler(schedule string, sweeper Sweeper, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		timeout: 5 * time.Minute,
		log:     log,
	}
	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop stops scheduling and waits for a running sweep until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stopped before the running sweep finished")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.SweepOverdue(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("overdue sweep failed")
		return
	}
	s.log.Info().
		Int("expired", result.Expired).
		Int("reminders", result.Reminders).
		Dur("took", time.Since(start)).
		Msg("overdue sweep done")
}
