// Package scheduler runs the periodic rescan, expiry sweep and archive jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a seconds-enabled cron. A job that is still running when
// its next tick fires is skipped, and a panicking job is recovered.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	baseCtx context.Context
}

// New creates a Scheduler whose jobs receive baseCtx.
func New(baseCtx context.Context, logger *slog.Logger) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			// Recover sits inside the skip guard so a panic still releases it.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under spec. An empty spec disables the job and is not an
// error.
func (s *Scheduler) Add(name, spec string, job func(context.Context) error) error {
	if spec == "" {
		s.logger.Info("job disabled", slog.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.baseCtx); err != nil {
			s.logger.ErrorContext(s.baseCtx, "job failed",
				slog.String("job", name),
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s (%q): %w", name, spec, err)
	}
	s.logger.Info("job scheduled", slog.String("job", name), slog.String("spec", spec))
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
