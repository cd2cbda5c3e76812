package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/regenagro/enviro-data-batch/internal/pipeline"
)

// BatchRunner is the pipeline surface the scheduler drives.
type BatchRunner interface {
	Run(ctx context.Context) (pipeline.RunResult, error)
}

// Scheduler triggers a batch run on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    BatchRunner
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler. An interval of zero disables scheduling.
func New(runner BatchRunner, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic batch job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler disabled, runs must be triggered over HTTP")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		result, err := s.runner.Run(ctx)
		if err != nil {
			// An overlapping manual run is not a scheduler failure.
			if errors.Is(err, pipeline.ErrRunInProgress) {
				s.logger.Warn("scheduled run skipped, another run in progress")
				return
			}
			s.logger.Error("scheduled run failed", "error", err)
			return
		}
		s.logger.Info("scheduled run completed",
			"run_id", result.ID,
			"processed", result.Processed,
			"skipped", result.Skipped,
			"errored", result.Errored,
		)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
