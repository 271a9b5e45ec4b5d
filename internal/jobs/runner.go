package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Runner executes link jobs in the background with bounded concurrency.
// Jobs waiting for a slot block only their own goroutine, never the caller.
// Close cancels the context handed to every job.
type Runner struct {
	Logger *slog.Logger

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// OnStart/OnDone observe job lifecycle (metrics).
	OnStart func()
	OnDone  func()
}

func NewRunner(limit int, logger *slog.Logger) *Runner {
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		Logger: logger,
		sem:    semaphore.NewWeighted(int64(limit)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules fn and returns its job id. Panics inside fn are recovered and logged.
// After Close, Submit drops fn and returns "".
func (r *Runner) Submit(name string, fn func(ctx context.Context, jobID string)) string {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		log.Warn("job rejected, runner closed", "job", name)
		return ""
	}
	r.wg.Add(1)
	r.mu.Unlock()
	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			log.Warn("job dropped before start", "job_id", id, "job", name, "err", err)
			return
		}
		defer r.sem.Release(1)

		if r.OnStart != nil {
			r.OnStart()
		}
		if r.OnDone != nil {
			defer r.OnDone()
		}
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic in job", "job_id", id, "job", name, "recover", rec)
			}
		}()

		log.Debug("job started", "job_id", id, "job", name)
		fn(r.ctx, id)
	}()
	return id
}

// Wait blocks until every submitted job has returned.
func (r *Runner) Wait() { r.wg.Wait() }

// Close cancels running and queued jobs and waits for them to return.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}
