// Package worker runs submitted jobs in the background with bounded concurrency.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/saru2020/ClipsExtractor/internal/jobs"
)

// ErrShuttingDown is returned by Submit once Shutdown has started.
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// Runner processes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, tr *jobs.Tracker) error
}

// Dispatcher starts one background task per submitted job. At most maxConcurrent run at once;
// the rest wait for a slot.
type Dispatcher struct {
	runner Runner
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher. maxConcurrent below 1 is treated as 1.
func NewDispatcher(runner Runner, maxConcurrent int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Submit schedules tr for processing and returns immediately.
func (d *Dispatcher) Submit(tr *jobs.Tracker) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShuttingDown
	}
	d.wg.Add(1)
	go d.process(tr)
	return nil
}

func (d *Dispatcher) process(tr *jobs.Tracker) {
	defer d.wg.Done()
	log := d.logger.With(zap.String("job_id", tr.ID()))

	// A failed acquire means shutdown; the runner still gets the job so it ends in a terminal state.
	acquired := d.sem.Acquire(d.ctx, 1) == nil
	if acquired {
		defer d.sem.Release(1)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r))
			_ = tr.Fail("Job processing failed: internal error")
		}
	}()

	if err := d.runner.Run(d.ctx, tr); err != nil {
		log.Debug("job finished with error", zap.Error(err))
	}
}

// Shutdown stops accepting jobs, cancels running ones and waits for them to finish or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("dispatcher drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
