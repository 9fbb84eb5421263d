package usecase

import (
	"context"
	"log/slog"
	"time"

	"TipsPipeline/internal/ports"
)

// Scheduler wires the interval driver with a recurring preset run.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	preset   Preset
	count    int
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring quick runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, preset Preset, count int, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, preset: preset, count: count, logger: logger}
}

// Start registers the preset run with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		result, err := s.pipeline.QuickGenerate(ctx, s.preset, s.count)
		if s.logger == nil {
			return
		}
		if err != nil {
			s.logger.Warn("scheduled run skipped", "trigger", trigger, "preset", s.preset, "error", err)
			return
		}
		s.logger.Info("scheduled run done", "trigger", trigger, "preset", s.preset, "status", result.Status, "run_id", result.RunID)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
