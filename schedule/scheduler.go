package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers the runner on a cron schedule. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	spec   string
	runner *Runner
}

// NewScheduler validates spec (standard five-field cron or a descriptor
// such as "@daily") and returns a scheduler.
func NewScheduler(spec string, runner *Runner) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, runner: runner}, nil
}

// Run blocks until ctx is done, then waits for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.spec, func() {
		_, err := s.runner.RunAll(ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			slog.Info("scheduled run skipped, another run holds the lock")
		case err != nil:
			slog.Error("scheduled run failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule run: %w", err)
	}

	c.Start()
	slog.Info("scheduler started", slog.String("schedule", s.spec))

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
	return nil
}

// cronLogger routes cron's logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
