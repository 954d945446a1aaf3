// Package sweep runs the periodic maintenance jobs: expired session cleanup,
// expired handover rejection, and audit spill draining. One failed job never
// blocks the others.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one named maintenance pass. The int is how many records the pass
// transitioned, used only for logging.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Runner schedules the registered jobs on a shared cron.
type Runner struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner builds a Runner on the given six-field cron spec (seconds
// included). Each tick runs every job sequentially with its own timeout.
func NewRunner(schedule string, timeout time.Duration, logger *zap.Logger, jobs ...Job) (*Runner, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		cron:    cron.New(cron.WithSeconds()),
		jobs:    jobs,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start launches the scheduler.
func (r *Runner) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("sweep runner started", zap.Int("jobs", len(r.jobs)))
}

// Stop waits for any in-flight tick to finish, bounded by ctx.
func (r *Runner) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("sweep runner stopped")
}

// RunOnce executes all jobs immediately, outside the schedule. Used by the
// sweeper daemon at startup and by tests.
func (r *Runner) RunOnce(ctx context.Context) {
	for _, job := range r.jobs {
		jobCtx, cancel := context.WithTimeout(ctx, r.timeout)
		n, err := job.Run(jobCtx)
		cancel()
		if err != nil {
			r.logger.Error("sweep job failed", zap.String("job", job.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			r.logger.Info("sweep job done", zap.String("job", job.Name), zap.Int("transitioned", n))
		}
	}
}

func (r *Runner) tick() {
	r.RunOnce(context.Background())
}
