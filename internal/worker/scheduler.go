package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"kcal/internal/core"
)

// Scheduler runs the periodic backfill.
type Scheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
}

// NewScheduler registers w.Backfill on a standard five-field cron spec,
// evaluated in the calendar's time zone.
func NewScheduler(ctx context.Context, w *SyncWorker, cal core.Calendar, spec string) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(cal.Location()))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	job, err := s.NewJob(
		gocron.CronJob(spec, false),
		gocron.NewTask(func() {
			if _, err := w.Backfill(ctx); err != nil {
				slog.ErrorContext(ctx, "Scheduled backfill failed", "error", err)
			}
		}),
		gocron.WithName("diary-backfill"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule backfill %q: %w", spec, err)
	}
	return &Scheduler{scheduler: s, job: job}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	if next, err := s.job.NextRun(); err == nil {
		slog.Info("Backfill scheduled", "next_run", next)
	}
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
