package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/service"
)

// Sweeper runs one SLA sweep.
type Sweeper interface {
	OnDailySweep(ctx context.Context) (*service.SweepResult, error)
}

// Scheduler fires periodic jobs from cron expressions.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler creates a scheduler. Overlapping runs of one job are skipped.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
	}
}

// AddSweep schedules sweeper on schedule, e.g. "@daily" or "0 6 * * *".
func (s *Scheduler) AddSweep(schedule string, sweeper Sweeper, timeout time.Duration) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(schedule, func() {
		RunSweep(context.Background(), sweeper, timeout, s.logger)
	})
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	s.logger.Info("sla sweep scheduled", zap.String("schedule", schedule))
	return id, nil
}

// Start runs the scheduler until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunSweep executes one sweep with an optional timeout and logs the outcome.
func RunSweep(ctx context.Context, sweeper Sweeper, timeout time.Duration, logger *zap.Logger) (*service.SweepResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := sweeper.OnDailySweep(ctx)
	if err != nil {
		logger.Error("sla sweep failed", zap.Error(err))
		return nil, err
	}
	return res, nil
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
