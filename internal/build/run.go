package build

import (
	"context"
	"os"
	"path/filepath"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/pipeline"
	"github.com/distbuild/distbuild/internal/report"
	"github.com/distbuild/distbuild/internal/taskgraph"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/mattn/go-isatty"
)

const reportFileMode = 0o644

// Plan returns the plan of the given targets.
func (b *Build) Plan(targets ...string) (*taskgraph.Plan, error) {
	return b.Graph.Plan(targets...)
}

// Preflight classifies the already compiled trees of the planned modules, so that a classification
// conflict fails the run before any task starts.
func (b *Build) Preflight(plan *taskgraph.Plan) error {
	errs := &errors.MultiError{}

	for _, p := range b.Pipelines {
		if !plan.Contains(p.TaskName(pipeline.StepClassify)) {
			continue
		}

		errs = errs.Append(p.Preflight())
	}

	return errs.ErrorOrNil()
}

// Run plans, preflights and executes the targets. The returned result is nil only when planning failed.
func (b *Build) Run(ctx context.Context, targets ...string) (*taskgraph.Result, error) {
	plan, err := b.Plan(targets...)
	if err != nil {
		return nil, err
	}

	if err := b.Preflight(plan); err != nil {
		return nil, err
	}

	return b.Execute(ctx, plan)
}

// Execute runs an already planned and preflighted build, then writes the report and the run summary.
func (b *Build) Execute(ctx context.Context, plan *taskgraph.Plan) (*taskgraph.Result, error) {
	logger := log.LoggerFromContext(ctx)

	store, err := b.stateStore()
	if err != nil {
		return nil, err
	}

	r := report.NewReport(report.WithColor(b.shouldColor()))

	logger.Debugf("Running %d task(s) with parallelism %d", len(plan.Tasks), b.Parallelism)

	result, runErr := plan.Execute(ctx,
		taskgraph.WithParallelism(b.Parallelism),
		taskgraph.WithLogger(logger),
		taskgraph.WithStateStore(store),
		taskgraph.WithReport(r),
		taskgraph.WithObserver(b.Tracker),
	)

	for module, state := range b.Tracker.States() {
		logger.Debugf("Module %s: %s", module, state)
	}

	if err := b.writeReport(r); err != nil {
		logger.Warnf("Unable to write the run report: %v", err)
	}

	if !b.Options.DisableSummary {
		if err := r.WriteSummary(b.Options.ErrWriter); err != nil {
			logger.Warnf("Unable to write the run summary: %v", err)
		}
	}

	return result, runErr
}

// stateStore returns the persisted fingerprints, or an empty in-memory store when caching is disabled.
func (b *Build) stateStore() (*taskgraph.StateStore, error) {
	if b.Options.NoCache {
		return taskgraph.NewMemoryStateStore(), nil
	}

	return taskgraph.LoadStateStore(b.Config.Build.StateFile)
}

func (b *Build) writeReport(r *report.Report) error {
	if b.Options.ReportFile == "" {
		return nil
	}

	path := b.Options.ReportFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.Options.WorkingDir, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.New(err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, reportFileMode)
	if err != nil {
		return errors.New(err)
	}
	defer file.Close()

	if filepath.Ext(path) == ".json" {
		return r.WriteJSON(file)
	}

	return r.WriteCSV(file)
}

func (b *Build) shouldColor() bool {
	if b.Options.DisableColor {
		return false
	}

	file, ok := b.Options.ErrWriter.(*os.File)

	return ok && (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd()))
}
