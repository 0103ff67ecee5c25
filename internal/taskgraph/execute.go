package taskgraph

import (
	"context"
	"runtime"
	"slices"
	"sync"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/queue"
	"github.com/distbuild/distbuild/internal/report"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/puzpuzpuz/xsync/v3"
)

// ExecuteOption configures plan execution.
type ExecuteOption func(*executor)

// WithParallelism limits the number of concurrently running task actions.
func WithParallelism(parallelism int) ExecuteOption {
	return func(e *executor) {
		if parallelism > 0 {
			e.parallelism = parallelism
		}
	}
}

// WithLogger sets the logger handed to task actions through their context.
func WithLogger(logger log.Logger) ExecuteOption {
	return func(e *executor) {
		e.logger = logger
	}
}

// WithStateStore enables up-to-date checks against the given store.
func WithStateStore(store *StateStore) ExecuteOption {
	return func(e *executor) {
		e.state = store
	}
}

// WithReport records every task outcome into the given report.
func WithReport(r *report.Report) ExecuteOption {
	return func(e *executor) {
		e.report = r
	}
}

// Observer is notified when a task action starts and when a task reaches a final status.
type Observer interface {
	TaskStarted(name string)
	TaskFinished(name string, status queue.Status)
}

// WithObserver registers an observer of task state changes.
func WithObserver(observer Observer) ExecuteOption {
	return func(e *executor) {
		e.observers = append(e.observers, observer)
	}
}

// Result is the outcome of executing a plan.
type Result struct {
	statuses  map[string]queue.Status
	errs      map[string]error
	Succeeded []string
	UpToDate  []string
	Failed    []string
	Blocked   []string
	first     *TaskExecutionError
}

// Status returns the final status of the named task.
func (result *Result) Status(name string) queue.Status {
	return result.statuses[name]
}

// TaskError returns the error of the named failed task.
func (result *Result) TaskError(name string) error {
	return result.errs[name]
}

// Err returns a RunError if any task failed.
func (result *Result) Err() error {
	if result.first == nil {
		return nil
	}

	return errors.New(RunError{
		First:   *result.first,
		Failed:  result.Failed,
		Blocked: result.Blocked,
	})
}

type executor struct {
	logger      log.Logger
	state       *StateStore
	report      *report.Report
	results     *xsync.MapOf[string, error]
	first       *TaskExecutionError
	observers   []Observer
	parallelism int
	firstMu     sync.Mutex
}

// Execute runs the plan. Independent tasks run concurrently, at most the configured parallelism at once.
// A failed task blocks its transitive dependents; tasks on independent branches still run to completion.
// The returned error is the RunError of the result, or the context error if the run was cancelled.
func (plan *Plan) Execute(ctx context.Context, opts ...ExecuteOption) (*Result, error) {
	e := &executor{
		logger:      log.LoggerFromContext(ctx),
		parallelism: runtime.NumCPU(),
		results:     xsync.NewMapOf[string, error](),
	}

	for _, opt := range opts {
		opt(e)
	}

	q := queue.NewQueue(plan.queueEntries())
	tasks := make(map[string]*Task, len(plan.Tasks))

	for _, task := range plan.Tasks {
		tasks[task.Name] = task
	}

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, e.parallelism)
		readyCh   = make(chan struct{}, 1)
		cancelled bool
	)

	signal := func() {
		select {
		case readyCh <- struct{}{}:
		default:
		}
	}

	for !q.Finished() {
		if ctx.Err() != nil {
			cancelled = true

			for _, name := range q.BlockPending(string(report.ReasonContextCancelled)) {
				e.endRun(name, report.WithResult(report.ResultBlocked), report.WithReason(report.ReasonContextCancelled))
			}

			break
		}

		ready, blocked := q.GetReady()

		for _, name := range blocked {
			cause := q.BlockedBy(name)

			e.finished(name, queue.StatusBlocked)
			e.logger.Warnf("Blocking %s", name)
			e.endRun(name,
				report.WithResult(report.ResultBlocked),
				report.WithReason(report.ReasonAncestorError),
				report.WithCauseAncestorFailed(cause),
			)
		}

		for _, entry := range ready {
			task := tasks[entry.Name]

			wg.Add(1)

			go func() {
				defer wg.Done()
				defer signal()

				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
				}

				if ctx.Err() != nil {
					q.SetStatus(task.Name, queue.StatusBlocked)
					e.endRun(task.Name, report.WithResult(report.ResultBlocked), report.WithReason(report.ReasonContextCancelled))

					return
				}

				e.runTask(ctx, q, task)
			}()
		}

		if q.Finished() {
			break
		}

		select {
		case <-readyCh:
		case <-ctx.Done():
		}
	}

	wg.Wait()

	if e.state != nil {
		if err := e.state.Save(); err != nil {
			e.logger.Warnf("Failed to save task state: %v", err)
		}
	}

	result := e.collect(plan, q)

	if err := result.Err(); err != nil {
		return result, err
	}

	if cancelled {
		return result, errors.New(ctx.Err())
	}

	return result, nil
}

func (e *executor) runTask(ctx context.Context, q *queue.Queue, task *Task) {
	logger := e.logger.WithField(log.FieldKeyPrefix, task.Name)

	if e.report != nil {
		if err := e.report.AddRun(report.NewRun(task.Name)); err != nil {
			logger.Debugf("%v", err)
		}
	}

	if e.state != nil {
		upToDate, err := e.state.IsUpToDate(task)
		if err != nil {
			logger.Warnf("Unable to check whether outputs are up to date: %v", err)
		}

		if upToDate {
			logger.Infof("Up-to-date, skipping")
			e.finished(task.Name, queue.StatusUpToDate)
			q.SetStatus(task.Name, queue.StatusUpToDate)
			e.endRun(task.Name, report.WithResult(report.ResultUpToDate), report.WithReason(report.ReasonInputsUnchanged))

			return
		}
	}

	logger.Debugf("Running task")

	for _, observer := range e.observers {
		observer.TaskStarted(task.Name)
	}

	if err := e.invoke(log.ContextWithLogger(ctx, logger), task); err != nil {
		execErr := TaskExecutionError{Task: task.Name, Err: err}

		e.results.Store(task.Name, execErr)
		e.setFirst(execErr)

		if e.state != nil {
			e.state.Forget(task.Name)
		}

		logger.Errorf("Task failed: %v", err)
		e.endRun(task.Name, report.WithResult(report.ResultFailed), report.WithReason(report.ReasonRunError))

		blockedTasks := q.FailEntry(task.Name)
		e.finished(task.Name, queue.StatusFailed)

		for _, blocked := range blockedTasks {
			e.finished(blocked, queue.StatusBlocked)
			logger.Warnf("Blocking %s", blocked)
			e.endRun(blocked,
				report.WithResult(report.ResultBlocked),
				report.WithReason(report.ReasonAncestorError),
				report.WithCauseAncestorFailed(task.Name),
			)
		}

		return
	}

	if e.state != nil {
		if err := e.state.Record(task); err != nil {
			logger.Warnf("Unable to record task fingerprint: %v", err)
		}
	}

	e.results.Store(task.Name, nil)
	// Observers see the status before dependents can be scheduled.
	e.finished(task.Name, queue.StatusSucceeded)
	q.SetStatus(task.Name, queue.StatusSucceeded)
	e.endRun(task.Name)
}

func (e *executor) finished(name string, status queue.Status) {
	for _, observer := range e.observers {
		observer.TaskFinished(name, status)
	}
}

func (e *executor) invoke(ctx context.Context, task *Task) (err error) {
	if task.Action == nil {
		return nil
	}

	defer errors.Recover(func(cause error) {
		err = cause
	})

	return task.Action(ctx)
}

func (e *executor) setFirst(err TaskExecutionError) {
	e.firstMu.Lock()
	defer e.firstMu.Unlock()

	if e.first == nil {
		e.first = &err
	}
}

func (e *executor) endRun(name string, opts ...report.EndOption) {
	if e.report == nil {
		return
	}

	if err := e.report.EndRun(name, opts...); err != nil {
		e.logger.Debugf("%v", err)
	}
}

func (e *executor) collect(plan *Plan, q *queue.Queue) *Result {
	result := &Result{
		statuses: make(map[string]queue.Status, len(plan.Tasks)),
		errs:     make(map[string]error),
		first:    e.first,
	}

	for _, entry := range q.Entries() {
		status, _ := q.Status(entry.Name)
		result.statuses[entry.Name] = status

		switch status {
		case queue.StatusSucceeded:
			result.Succeeded = append(result.Succeeded, entry.Name)
		case queue.StatusUpToDate:
			result.UpToDate = append(result.UpToDate, entry.Name)
		case queue.StatusFailed:
			result.Failed = append(result.Failed, entry.Name)
		case queue.StatusBlocked:
			result.Blocked = append(result.Blocked, entry.Name)
		}
	}

	e.results.Range(func(name string, err error) bool {
		if err != nil {
			result.errs[name] = err
		}

		return true
	})

	// List the first failure first.
	if result.first != nil {
		if idx := slices.Index(result.Failed, result.first.Task); idx > 0 {
			result.Failed = append([]string{result.first.Task}, append(result.Failed[:idx:idx], result.Failed[idx+1:]...)...)
		}
	}

	return result
}
