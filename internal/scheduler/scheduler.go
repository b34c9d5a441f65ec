// Package scheduler invokes a job on a fixed interval, one invocation at a
// time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultInterval is used when Interval is not positive.
const DefaultInterval = 24 * time.Hour

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a Job every Interval on a cron runner. A tick that arrives
// while the job is still running is skipped, so invocations never overlap.
// Cron granularity is one second; shorter intervals round up.
type Scheduler struct {
	Interval   time.Duration
	RunOnStart bool
	Logger     *zap.Logger
}

// Spec returns the cron spec for the configured interval.
func (s Scheduler) Spec() string {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return "@every " + interval.String()
}

// Run blocks until ctx is done, then waits for an in-flight job to return.
// Job errors and panics are logged and do not stop the schedule.
func (s Scheduler) Run(ctx context.Context, job Job) error {
	if job == nil {
		return errors.New("scheduler job is required")
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger}

	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	spec := s.Spec()
	id, err := c.AddFunc(spec, func() { invoke(ctx, logger, job) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("scheduler started", zap.String("spec", spec))
	if s.RunOnStart {
		// The wrapped job shares the skip guard with scheduled ticks.
		c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
	return nil
}

func invoke(ctx context.Context, logger *zap.Logger, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		logger.Error("scheduled job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Debug("scheduled job finished", zap.Duration("duration", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger. Cron's own chatter goes to debug.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []any) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}
