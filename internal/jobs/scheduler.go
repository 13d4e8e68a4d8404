// Package jobs runs the periodic reservation maintenance: the grace-period sweep
// and the completion of finished rentals.
package jobs

import (
	"context"
	"fmt"
	"time"

	"fleetbook/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is the part of the reservation service the scheduler drives.
type Runner interface {
	SweepOverdue(ctx context.Context, now time.Time) (service.SweepResult, error)
	CompleteFinished(ctx context.Context, now time.Time) (int, error)
}

type Schedules struct {
	Sweep      string
	Completion string
	// Timeout bounds a single run. Zero means one minute.
	Timeout time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// zapCronLogger lets cron report panics and skipped runs through zap.
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

func NewScheduler(runner Runner, schedules Schedules, logger *zap.Logger) (*Scheduler, error) {
	cronLogger := zapCronLogger{sugar: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:  runner,
		logger:  logger,
		timeout: schedules.Timeout,
		now:     time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}

	if _, err := s.cron.AddFunc(schedules.Sweep, s.runSweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedules.Sweep, err)
	}
	if _, err := s.cron.AddFunc(schedules.Completion, s.runCompletion); err != nil {
		return nil, fmt.Errorf("invalid completion schedule %q: %w", schedules.Completion, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.runner.SweepOverdue(ctx, s.now())
	if err != nil {
		s.logger.Error("grace-period sweep had failures",
			zap.Int("cancelled", result.Cancelled),
			zap.Strings("failed", result.Failed),
			zap.Error(err))
	}
}

func (s *Scheduler) runCompletion() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.runner.CompleteFinished(ctx, s.now()); err != nil {
		s.logger.Error("completing finished reservations failed", zap.Error(err))
	}
}
