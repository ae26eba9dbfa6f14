package jobs

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// Queue is the job store the worker drains. *Repo implements it.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
}

type HandlerFunc func(ctx context.Context, job *Job) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

type Worker struct {
	ID       string
	Queue    Queue
	Handlers map[string]HandlerFunc
	Interval time.Duration
	Log      *zap.Logger

	now func() time.Time
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger().Info("worker started", zap.String("worker", w.ID), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			w.logger().Info("worker stopped", zap.String("worker", w.ID))
			return
		case <-ticker.C:
			job, err := w.Queue.Claim(ctx, w.ID)
			if err != nil {
				if ctx.Err() == nil {
					w.logger().Warn("worker claim error", zap.Error(err))
				}
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	log := w.logger().With(zap.Uint64("job", job.ID), zap.String("type", job.Type))

	// queue writes outlive shutdown so a finished job is never left RUNNING
	bk := context.WithoutCancel(ctx)

	h, ok := w.Handlers[job.Type]
	if !ok {
		log.Error("unknown job type")
		_ = w.Queue.MarkFailed(bk, job.ID, "unknown job type")
		return
	}

	err := h(ctx, job)
	var perm permanentError
	switch {
	case err == nil:
		if err := w.Queue.MarkDone(bk, job.ID); err != nil {
			log.Warn("mark done failed", zap.Error(err))
		}
	case errors.As(err, &perm):
		log.Error("job failed permanently", zap.Error(err))
		_ = w.Queue.MarkFailed(bk, job.ID, err.Error())
	default:
		log.Warn("job failed, retrying", zap.Error(err), zap.Int("attempts", job.Attempts+1))
		w.retry(bk, job, err.Error())
	}
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Queue.MarkFailed(ctx, job.ID, errMsg)
		return
	}

	_ = w.Queue.RetryLater(ctx, job.ID, attempts, w.clock().Add(Backoff(attempts)), errMsg)
}

// Backoff is 2^attempts seconds, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}

func (w *Worker) logger() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}

func (w *Worker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
