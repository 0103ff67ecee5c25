package taskgraph

import (
	"fmt"
	"strings"

	"github.com/distbuild/distbuild/internal/errors"
)

// ErrConfiguration matches every error raised while registering or planning tasks.
var ErrConfiguration = errors.New("configuration error")

// DuplicateTaskError is returned when a task name is registered twice.
type DuplicateTaskError struct {
	Name string
}

func (err DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", err.Name)
}

func (err DuplicateTaskError) Is(target error) bool {
	return target == ErrConfiguration //nolint:errorlint
}

// OutputCollisionError is returned when a task declares an output path already owned by another task.
type OutputCollisionError struct {
	Path  string
	Task  string
	Owner string
}

func (err OutputCollisionError) Error() string {
	return fmt.Sprintf("task %q declares output %s which overlaps an output of task %q", err.Task, err.Path, err.Owner)
}

func (err OutputCollisionError) Is(target error) bool {
	return target == ErrConfiguration //nolint:errorlint
}

// UnknownTaskError is returned when a target or an edge names a task that was never registered.
type UnknownTaskError struct {
	Name         string
	ReferencedBy string
}

func (err UnknownTaskError) Error() string {
	if err.ReferencedBy == "" {
		return fmt.Sprintf("task %q is not registered", err.Name)
	}

	return fmt.Sprintf("task %q references unknown task %q", err.ReferencedBy, err.Name)
}

func (err UnknownTaskError) Is(target error) bool {
	return target == ErrConfiguration //nolint:errorlint
}

// CycleError lists the tasks of a dependency cycle, the first task repeated at the end.
type CycleError []string

func (err CycleError) Error() string {
	return "Found a dependency cycle between tasks: " + strings.Join([]string(err), " -> ")
}

func (err CycleError) Is(target error) bool {
	return target == ErrConfiguration //nolint:errorlint
}

// TaskExecutionError wraps the error returned by a task action.
type TaskExecutionError struct {
	Err  error
	Task string
}

func (err TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s failed: %v", err.Task, err.Err)
}

func (err TaskExecutionError) Unwrap() error {
	return err.Err
}

// RunError is the outcome of a run in which at least one task failed.
type RunError struct {
	// First is the failure that was recorded first.
	First   TaskExecutionError
	Failed  []string
	Blocked []string
}

func (err RunError) Error() string {
	var sb strings.Builder

	sb.WriteString(err.First.Error())

	if others := len(err.Failed) - 1; others > 0 {
		fmt.Fprintf(&sb, "\n%d more failed task(s): %s", others, strings.Join(err.Failed[1:], ", "))
	}

	if len(err.Blocked) > 0 {
		fmt.Fprintf(&sb, "\nblocked task(s): %s", strings.Join(err.Blocked, ", "))
	}

	return sb.String()
}

func (err RunError) Unwrap() error {
	return err.First
}
