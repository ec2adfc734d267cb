package reconciliation

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs  atomic.Int32
	block chan struct{}
}

func (j *countingJob) Run(ctx context.Context) (Summary, error) {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return Summary{}, ctx.Err()
		}
	}
	return Summary{Reviewed: 1}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorkerRunOnce(t *testing.T) {
	job := &countingJob{}
	w := NewWorker(job, nil, time.Hour, quietLogger())

	sum, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Reviewed)

	_, err = w.RunOnce(context.Background())
	require.NoError(t, err, "lock is released after each run")
	assert.Equal(t, int32(2), job.runs.Load())
}

func TestWorkerRefusesConcurrentRun(t *testing.T) {
	job := &countingJob{block: make(chan struct{})}
	lock := &LocalLock{}
	w := NewWorker(job, lock, time.Hour, quietLogger())

	done := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(job.block)
	require.NoError(t, <-done)
}

func TestWorkerRunsOnInterval(t *testing.T) {
	job := &countingJob{}
	w := NewWorker(job, nil, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
