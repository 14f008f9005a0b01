package retrain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"skill-recommender/internal/artifact"
	"skill-recommender/internal/shared/metrics"
)

// DefaultLockRetry is how long Serve waits before retrying a request that
// found the lock held by another process.
const DefaultLockRetry = 15 * time.Second

const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Runner executes one retrain.
type Runner interface {
	Run(ctx context.Context) (artifact.Manifest, error)
}

// Locker serializes retrains across processes. ok is false when another
// holder has the lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), ok bool, err error)
}

// ErrLockHeld is returned by RunOnce when another process is retraining.
var ErrLockHeld = errors.New("retrain lock held elsewhere")

// Worker runs retrains one at a time. Requests that arrive while a retrain is
// in flight collapse into a single follow-up run.
type Worker struct {
	runner    Runner
	locker    Locker
	lockKey   string
	lockRetry time.Duration
	logger    zerolog.Logger
	pending   chan string

	mu  sync.Mutex // held for the duration of a run
	now func() time.Time
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLocker adds a cross-process lock around every run.
func WithLocker(l Locker, key string) WorkerOption {
	return func(w *Worker) {
		w.locker = l
		w.lockKey = key
	}
}

// WithLockRetry sets the delay before a request blocked by the lock is run again.
func WithLockRetry(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockRetry = d
		}
	}
}

//nolint:gocritic // zerolog loggers are passed by value
func NewWorker(runner Runner, logger zerolog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		runner:    runner,
		lockRetry: DefaultLockRetry,
		logger:    logger.With().Str("component", "retrain_worker").Logger(),
		pending:   make(chan string, 1),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Request schedules a retrain without blocking. It reports false when the
// request was folded into one that is already pending.
func (w *Worker) Request(reason string) bool {
	select {
	case w.pending <- reason:
		return true
	default:
		w.logger.Debug().Str("reason", reason).Msg("retrain request coalesced")
		return false
	}
}

// Serve implements suture.Service. A request that finds the lock held
// elsewhere is requested again after the lock retry delay, since the other
// holder may have read its votes before this request's feedback landed.
func (w *Worker) Serve(ctx context.Context) error {
	w.logger.Info().Msg("retrain worker starting")
	var (
		retry       <-chan time.Time
		retryReason string
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("retrain worker shutting down")
			return ctx.Err()
		case reason := <-w.pending:
			err := w.RunOnce(ctx, reason)
			switch {
			case errors.Is(err, ErrLockHeld):
				if retry == nil {
					retry = time.After(w.lockRetry)
					retryReason = reason
				}
			case err == nil:
				// a successful run saw every vote the retry was waiting on
				retry = nil
			}
		case <-retry:
			retry = nil
			w.Request(retryReason)
		}
	}
}

// RunOnce executes a retrain synchronously. Failures, including panics, are
// logged and counted; the previously published model stays authoritative.
func (w *Worker) RunOnce(ctx context.Context, reason string) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := w.now()
	outcome := OutcomeFailed
	var manifest artifact.Manifest
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("retrain panic: %v", r)
			outcome = OutcomeFailed
		}
		elapsed := w.now().Sub(start)
		metrics.ObserveRetrain(outcome, elapsed)
		ev := w.logger.Info()
		switch outcome {
		case OutcomeFailed:
			ev = w.logger.Error().Err(err)
		case OutcomeSkipped:
			ev = w.logger.Warn()
		}
		ev.Str("reason", reason).
			Str("outcome", outcome).
			Str("version", manifest.Version).
			Dur("duration", elapsed).
			Msg("retrain finished")
	}()

	if w.locker != nil {
		release, ok, lockErr := w.locker.Acquire(ctx, w.lockKey)
		switch {
		case lockErr != nil:
			w.logger.Warn().Err(lockErr).Msg("retrain lock unavailable, continuing without it")
		case !ok:
			outcome = OutcomeSkipped
			return ErrLockHeld
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	manifest, err = w.runner.Run(ctx)
	if err != nil {
		return err
	}
	outcome = OutcomePublished
	return nil
}

func (w *Worker) String() string {
	return "retrain-worker"
}
