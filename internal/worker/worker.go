// Package worker provides a bounded pool for running independent jobs concurrently.
//
// The pool limits the number of jobs running at the same time through a semaphore,
// recovers panicking jobs into errors, and aggregates every job error into a single
// MultiError returned by Wait. Jobs submitted after the context is cancelled or after
// Stop are not started.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/distbuild/distbuild/internal/errors"
)

// Job is a unit of work executed by the pool.
type Job func(ctx context.Context) error

// Pool manages concurrent job execution with a configurable number of workers.
type Pool struct {
	ctx        context.Context
	semaphore  chan struct{}
	allErrors  *errors.MultiError
	wg         sync.WaitGroup
	errorsMu   sync.Mutex
	maxWorkers int
	isStopping atomic.Bool
}

// NewWorkerPool creates a new worker pool with the specified maximum number of concurrent workers.
func NewWorkerPool(ctx context.Context, maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &Pool{
		ctx:        ctx,
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
		allErrors:  &errors.MultiError{},
	}
}

// MaxWorkers returns the concurrency limit of the pool.
func (wp *Pool) MaxWorkers() int {
	return wp.maxWorkers
}

// Submit schedules the named job. The name prefixes any error the job returns.
func (wp *Pool) Submit(name string, job Job) {
	if wp.isStopping.Load() {
		return
	}

	wp.wg.Add(1)

	go func() {
		defer wp.wg.Done()

		select {
		case wp.semaphore <- struct{}{}:
		case <-wp.ctx.Done():
			wp.appendError(errors.WithStackTraceAndPrefix(wp.ctx.Err(), "%s", name))
			return
		}

		defer func() { <-wp.semaphore }()

		if wp.isStopping.Load() {
			return
		}

		if err := wp.run(job); err != nil {
			wp.appendError(errors.WithStackTraceAndPrefix(err, "%s", name))
		}
	}()
}

func (wp *Pool) run(job Job) (err error) {
	defer errors.Recover(func(cause error) {
		err = cause
	})

	return job(wp.ctx)
}

func (wp *Pool) appendError(err error) {
	wp.errorsMu.Lock()
	wp.allErrors = wp.allErrors.Append(err)
	wp.errorsMu.Unlock()
}

// Wait blocks until all submitted jobs are completed and returns the aggregated errors.
func (wp *Pool) Wait() error {
	wp.wg.Wait()

	wp.errorsMu.Lock()
	defer wp.errorsMu.Unlock()

	return wp.allErrors.ErrorOrNil()
}

// Stop prevents jobs that have not started yet from running. Running jobs finish.
func (wp *Pool) Stop() {
	wp.isStopping.Store(true)
}

// IsStopping returns whether the pool is in the process of stopping.
func (wp *Pool) IsStopping() bool {
	return wp.isStopping.Load()
}
