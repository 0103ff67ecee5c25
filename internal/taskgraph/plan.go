package taskgraph

import (
	"slices"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/queue"
)

// Plan is the ordered, minimal set of tasks required to build the targets.
type Plan struct {
	depth   map[string]int
	after   map[string][]string
	Targets []string
	// Tasks are sorted so that every task comes after its dependencies and the tasks it finalizes.
	Tasks []*Task
}

// Plan computes the dependency closure of the targets, including finalizers of every planned task,
// and orders it topologically. It fails with UnknownTaskError or CycleError.
func (graph *Graph) Plan(targets ...string) (*Plan, error) {
	graph.mu.RLock()
	defer graph.mu.RUnlock()

	if len(targets) == 0 {
		return nil, errors.Errorf("%w: no targets to plan", ErrConfiguration)
	}

	closure, err := graph.closure(targets)
	if err != nil {
		return nil, err
	}

	// finalizer -> finalized tasks, restricted to the closure.
	after := make(map[string][]string)

	for _, name := range graph.order {
		if !closure[name] {
			continue
		}

		for _, finalizer := range graph.tasks[name].FinalizedBy {
			after[finalizer] = append(after[finalizer], name)
		}
	}

	plan := &Plan{
		Targets: slices.Clone(targets),
		depth:   make(map[string]int, len(closure)),
		after:   after,
	}

	var (
		visited          = make(map[string]bool, len(closure))
		currentTraversal []string
	)

	for _, name := range graph.order {
		if !closure[name] {
			continue
		}

		if err := graph.visit(name, plan, visited, &currentTraversal); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func (graph *Graph) closure(targets []string) (map[string]bool, error) {
	closure := make(map[string]bool)

	type ref struct{ name, from string }

	stack := make([]ref, 0, len(targets))
	for _, target := range targets {
		stack = append(stack, ref{name: target})
	}

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if closure[next.name] {
			continue
		}

		task, ok := graph.tasks[next.name]
		if !ok {
			return nil, errors.New(UnknownTaskError{Name: next.name, ReferencedBy: next.from})
		}

		closure[next.name] = true

		for _, dep := range task.DependsOn {
			stack = append(stack, ref{name: dep, from: task.Name})
		}

		for _, finalizer := range task.FinalizedBy {
			stack = append(stack, ref{name: finalizer, from: task.Name})
		}
	}

	return closure, nil
}

// visit appends name to the plan after all of its predecessors, detecting cycles along the way.
func (graph *Graph) visit(name string, plan *Plan, visited map[string]bool, currentTraversal *[]string) error {
	if visited[name] {
		return nil
	}

	if idx := slices.Index(*currentTraversal, name); idx >= 0 {
		cycle := append(slices.Clone((*currentTraversal)[idx:]), name)
		return errors.New(CycleError(cycle))
	}

	*currentTraversal = append(*currentTraversal, name)

	task := graph.tasks[name]
	depth := 0

	for _, pred := range plan.predecessors(task) {
		if err := graph.visit(pred, plan, visited, currentTraversal); err != nil {
			return err
		}

		depth = max(depth, plan.depth[pred]+1)
	}

	*currentTraversal = (*currentTraversal)[:len(*currentTraversal)-1]
	visited[name] = true

	plan.depth[name] = depth
	plan.Tasks = append(plan.Tasks, task)

	return nil
}

func (plan *Plan) predecessors(task *Task) []string {
	return append(slices.Clone(task.DependsOn), plan.after[task.Name]...)
}

// Names returns the planned task names in execution order.
func (plan *Plan) Names() []string {
	names := make([]string, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		names = append(names, task.Name)
	}

	return names
}

// Contains reports whether the named task is part of the plan.
func (plan *Plan) Contains(name string) bool {
	_, ok := plan.depth[name]
	return ok
}

// Depth returns the length of the longest predecessor chain of the named task.
func (plan *Plan) Depth(name string) int {
	return plan.depth[name]
}

// Levels groups the planned task names by depth. Tasks in the same level do not depend on each other.
func (plan *Plan) Levels() [][]string {
	var levels [][]string

	for _, task := range plan.Tasks {
		depth := plan.depth[task.Name]
		for len(levels) <= depth {
			levels = append(levels, nil)
		}

		levels[depth] = append(levels[depth], task.Name)
	}

	return levels
}

func (plan *Plan) queueEntries() []*queue.Entry {
	entries := make([]*queue.Entry, 0, len(plan.Tasks))

	for _, task := range plan.Tasks {
		entries = append(entries, &queue.Entry{
			Name:         task.Name,
			Dependencies: slices.Clone(task.DependsOn),
			After:        slices.Clone(plan.after[task.Name]),
		})
	}

	return entries
}
