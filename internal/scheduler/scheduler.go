package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

// DefaultRunTimeout bounds a single scheduled run.
const DefaultRunTimeout = 5 * time.Minute

// Runner executes one reconciliation run.
type Runner interface {
	Run(ctx context.Context) (forecast.RunReport, error)
}

// Recorder keeps finished run reports.
type Recorder interface {
	Add(report forecast.RunReport)
}

// Scheduler triggers runs on a cron schedule in the reference timezone.
// Runs never overlap: a tick that fires while a run is in progress waits
// for it to finish.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	recorder  Recorder
	schedule  string
	timeout   time.Duration
	log       *zap.Logger
}

// New creates a new Scheduler. recorder may be nil.
func New(schedule string, loc *time.Location, runner Runner, recorder Recorder, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		runner:    runner,
		recorder:  recorder,
		schedule:  schedule,
		timeout:   DefaultRunTimeout,
		log:       log,
	}
}

// Start schedules the job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		return errors.New("scheduler: empty schedule")
	}

	_, err := s.scheduler.Cron(s.schedule).SingletonMode().Do(s.runJob)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	_, next := s.scheduler.NextRun()
	s.log.Info("scheduler started", zap.String("schedule", s.schedule), zap.Time("next_run", next))
	return nil
}

// runJob performs one bounded run and records its report.
func (s *Scheduler) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Debug("scheduler: running forecast job")
	report, err := s.runner.Run(ctx)
	if s.recorder != nil {
		s.recorder.Add(report)
	}
	if err != nil {
		s.log.Error("scheduled run failed", zap.String("run_id", report.ID), zap.Error(err))
		return
	}
	s.log.Debug("scheduler: completed forecast job", zap.String("run_id", report.ID), zap.Int("written", report.Written))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
