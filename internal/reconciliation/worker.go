package reconciliation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"klok/pkg/platform/sentinel"
)

// Runner is one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// ErrRunInProgress is returned by RunOnce when another instance holds the lock.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// Worker schedules runs on a fixed interval. Every run, scheduled or
// triggered, goes through the lock.
type Worker struct {
	job      Runner
	lock     Locker
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(job Runner, lock Locker, interval time.Duration, logger *slog.Logger) *Worker {
	if lock == nil {
		lock = &LocalLock{}
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{job: job, lock: lock, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. A run skipped because another
// instance holds the lock is not an error.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				if errors.Is(err, ErrRunInProgress) {
					w.logger.DebugContext(ctx, "reconciliation skipped, lock held elsewhere")
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.ErrorContext(ctx, "reconciliation run failed", "error", err)
			}
		}
	}
}

// RunOnce takes the lock and runs the job.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	release, err := w.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return Summary{}, ErrRunInProgress
		}
		return Summary{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			w.logger.WarnContext(ctx, "reconciliation lock release failed", "error", err)
		}
	}()
	return w.job.Run(ctx)
}
