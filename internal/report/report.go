// Package report collects the outcome of every task in a build run and renders
// run summaries and machine readable reports from it.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/google/uuid"
)

// Report captures data for a report/summary.
type Report struct {
	ID string

	runs        []*Run
	mu          sync.RWMutex
	shouldColor bool
}

// Run captures data for a single task run.
type Run struct {
	Name    string
	Started time.Time
	Ended   time.Time
	Result  Result
	Reason  *Reason
	Cause   *Cause

	mu sync.RWMutex
}

// Result captures the result of a run.
type Result string

// Reason captures the reason for a run result.
type Reason string

// Cause captures the cause of a run result, usually the name of a failed upstream task.
type Cause string

const (
	ResultSucceeded Result = "succeeded"
	ResultUpToDate  Result = "up-to-date"
	ResultFailed    Result = "failed"
	ResultBlocked   Result = "blocked"
)

const (
	ReasonRunError         Reason = "run error"
	ReasonAncestorError    Reason = "ancestor error"
	ReasonInputsUnchanged  Reason = "inputs unchanged"
	ReasonContextCancelled Reason = "cancelled"
)

var (
	// ErrRunAlreadyExists is returned when a run already exists in the report.
	ErrRunAlreadyExists = errors.New("run already exists")
	// ErrRunNotFound is returned when a run is not found in the report.
	ErrRunNotFound = errors.New("run not found")
)

// Option configures a Report.
type Option func(*Report)

// WithColor enables colored summary output.
func WithColor(shouldColor bool) Option {
	return func(r *Report) {
		r.shouldColor = shouldColor
	}
}

// NewReport creates a new report with a fresh run ID.
func NewReport(opts ...Option) *Report {
	r := &Report{
		ID:   uuid.NewString(),
		runs: make([]*Run, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewRun creates a new run.
func NewRun(name string) *Run {
	return &Run{
		Name:    name,
		Started: time.Now(),
	}
}

// AddRun adds a run to the report.
// If the run already exists, it returns the ErrRunAlreadyExists error.
func (r *Report) AddRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existingRun := range r.runs {
		if existingRun.Name == run.Name {
			return errors.Errorf("%w: %s", ErrRunAlreadyExists, run.Name)
		}
	}

	r.runs = append(r.runs, run)

	return nil
}

// GetRun returns a run from the report, or nil.
func (r *Report) GetRun(name string) *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, run := range r.runs {
		if run.Name == name {
			return run
		}
	}

	return nil
}

// Runs returns a snapshot of the runs in the order they were added.
func (r *Report) Runs() []*Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.runs)
}

// EndRun ends a run. A run that was never started is added first, so blocked
// tasks show up in the report with a zero duration.
// By default, the run is assumed to have succeeded. To change this, pass WithResult to the function.
func (r *Report) EndRun(name string, endOptions ...EndOption) error {
	run := r.GetRun(name)
	if run == nil {
		run = NewRun(name)
		if err := r.AddRun(run); err != nil {
			return err
		}
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	run.Ended = time.Now()
	run.Result = ResultSucceeded

	for _, endOption := range endOptions {
		endOption(run)
	}

	return nil
}

// EndOption are optional configurations for ending a run.
type EndOption func(*Run)

// WithResult sets the result of a run.
func WithResult(result Result) EndOption {
	return func(run *Run) {
		run.Result = result
	}
}

// WithReason sets the reason of a run.
func WithReason(reason Reason) EndOption {
	return func(run *Run) {
		run.Reason = &reason
	}
}

// WithCauseAncestorFailed sets the cause of a run to the name of the failed task that blocked it.
func WithCauseAncestorFailed(name string) EndOption {
	return func(run *Run) {
		cause := Cause(name)
		run.Cause = &cause
	}
}

// WriteCSV writes the report to a writer in CSV format.
func (r *Report) WriteCSV(w io.Writer) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write([]string{"Name", "Started", "Ended", "Result", "Reason", "Cause"}); err != nil {
		return errors.New(err)
	}

	for _, run := range r.Runs() {
		if err := csvWriter.Write(run.record()); err != nil {
			return errors.New(err)
		}
	}

	csvWriter.Flush()

	return errors.WithStackTrace(csvWriter.Error())
}

// JSONRun represents a run in JSON format.
type JSONRun struct {
	Started time.Time `json:"Started"`
	Ended   time.Time `json:"Ended"`
	Reason  *string   `json:"Reason,omitempty"`
	Cause   *string   `json:"Cause,omitempty"`
	Name    string    `json:"Name"`
	Result  string    `json:"Result"`
}

// WriteJSON writes the report to a writer as a JSON array.
func (r *Report) WriteJSON(w io.Writer) error {
	runs := r.Runs()
	jsonRuns := make([]JSONRun, 0, len(runs))

	for _, run := range runs {
		run.mu.RLock()

		jsonRun := JSONRun{
			Name:    run.Name,
			Started: run.Started,
			Ended:   run.Ended,
			Result:  string(run.Result),
		}

		if run.Reason != nil {
			reason := string(*run.Reason)
			jsonRun.Reason = &reason
		}

		if run.Cause != nil {
			cause := string(*run.Cause)
			jsonRun.Cause = &cause
		}

		run.mu.RUnlock()

		jsonRuns = append(jsonRuns, jsonRun)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return errors.WithStackTrace(encoder.Encode(jsonRuns))
}

func (run *Run) record() []string {
	run.mu.RLock()
	defer run.mu.RUnlock()

	reason := ""
	if run.Reason != nil {
		reason = string(*run.Reason)
	}

	cause := ""
	if run.Cause != nil {
		cause = string(*run.Cause)
	}

	return []string{
		run.Name,
		run.Started.Format(time.RFC3339),
		run.Ended.Format(time.RFC3339),
		string(run.Result),
		reason,
		cause,
	}
}
