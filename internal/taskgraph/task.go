// Package taskgraph registers named tasks with dependency edges, plans the minimal
// set of tasks needed for a set of targets, and executes the plan on a bounded pool,
// skipping tasks whose declared outputs are up to date.
package taskgraph

import (
	"context"
	"path/filepath"
	"slices"
)

// Action is the work performed by a task.
type Action func(ctx context.Context) error

// Task is a named unit of work in the graph.
type Task struct {
	Action Action
	// Properties are extra values mixed into the input fingerprint, such as the product version.
	Properties  map[string]string
	Name        string
	Description string
	// Group is used to organize the plan output, usually the module name.
	Group string
	// DependsOn lists tasks that must succeed before this task runs.
	DependsOn []string
	// FinalizedBy lists tasks scheduled after this task whenever it is planned.
	FinalizedBy []string
	Inputs      []string
	Outputs     []string
}

// HasOutputs reports whether the task declares outputs and is therefore eligible for up-to-date checks.
func (task *Task) HasOutputs() bool {
	return len(task.Outputs) > 0
}

func (task *Task) clone() *Task {
	clone := *task
	clone.DependsOn = slices.Clone(task.DependsOn)
	clone.FinalizedBy = slices.Clone(task.FinalizedBy)
	clone.Inputs = cleanPaths(task.Inputs)
	clone.Outputs = cleanPaths(task.Outputs)

	return &clone
}

func cleanPaths(paths []string) []string {
	cleaned := make([]string, 0, len(paths))

	for _, path := range paths {
		cleaned = append(cleaned, filepath.Clean(path))
	}

	return cleaned
}
