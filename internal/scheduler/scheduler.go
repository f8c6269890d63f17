package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Jobs bundles the callbacks the scheduler drives.
type Jobs struct {
	MonitorPass func()
	DailyReport func()
	Maintenance func()
}

// Options carry the cron expressions for each job. Empty expressions skip
// registration of that job.
type Options struct {
	MonitorCron     string
	ReportCron      string
	MaintenanceCron string
}

// Scheduler triggers monitoring passes and housekeeping on a cron cadence.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Register wires the jobs onto their cron expressions.
func (s *Scheduler) Register(opts Options, jobs Jobs) error {
	if opts.MonitorCron != "" && jobs.MonitorPass != nil {
		if _, err := s.cron.AddFunc(opts.MonitorCron, jobs.MonitorPass); err != nil {
			return fmt.Errorf("register monitor job: %w", err)
		}
	}
	if opts.ReportCron != "" && jobs.DailyReport != nil {
		if _, err := s.cron.AddFunc(opts.ReportCron, jobs.DailyReport); err != nil {
			return fmt.Errorf("register report job: %w", err)
		}
	}
	if opts.MaintenanceCron != "" && jobs.Maintenance != nil {
		if _, err := s.cron.AddFunc(opts.MaintenanceCron, jobs.Maintenance); err != nil {
			return fmt.Errorf("register maintenance job: %w", err)
		}
	}
	return nil
}

// Run starts the cron loop and blocks until ctx is cancelled; queued jobs
// are allowed to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("scheduler stopped")
	return ctx.Err()
}
