package taskgraph

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/distbuild/distbuild/internal/errors"
)

// Graph is the set of registered tasks.
type Graph struct {
	tasks        map[string]*Task
	outputOwners map[string]string
	order        []string
	mu           sync.RWMutex
}

// NewGraph returns an empty task graph.
func NewGraph() *Graph {
	return &Graph{
		tasks:        make(map[string]*Task),
		outputOwners: make(map[string]string),
	}
}

// Register adds a task to the graph. Edges may name tasks registered later; they are resolved by Plan.
func (graph *Graph) Register(task *Task) error {
	if task == nil || task.Name == "" {
		return errors.Errorf("%w: task name must not be empty", ErrConfiguration)
	}

	graph.mu.Lock()
	defer graph.mu.Unlock()

	if _, ok := graph.tasks[task.Name]; ok {
		return errors.New(DuplicateTaskError{Name: task.Name})
	}

	task = task.clone()

	for _, output := range task.Outputs {
		if owner, ok := graph.findOutputOwner(output); ok {
			return errors.New(OutputCollisionError{Path: output, Task: task.Name, Owner: owner})
		}
	}

	for _, output := range task.Outputs {
		graph.outputOwners[output] = task.Name
	}

	graph.tasks[task.Name] = task
	graph.order = append(graph.order, task.Name)

	return nil
}

// Task returns the registered task with the given name.
func (graph *Graph) Task(name string) (*Task, bool) {
	graph.mu.RLock()
	defer graph.mu.RUnlock()

	task, ok := graph.tasks[name]

	return task, ok
}

// Tasks returns all tasks in registration order.
func (graph *Graph) Tasks() []*Task {
	graph.mu.RLock()
	defer graph.mu.RUnlock()

	tasks := make([]*Task, 0, len(graph.order))
	for _, name := range graph.order {
		tasks = append(tasks, graph.tasks[name])
	}

	return tasks
}

// Len returns the number of registered tasks.
func (graph *Graph) Len() int {
	graph.mu.RLock()
	defer graph.mu.RUnlock()

	return len(graph.order)
}

// findOutputOwner returns the task owning the given path, or a path nested with it.
func (graph *Graph) findOutputOwner(path string) (string, bool) {
	for owned, owner := range graph.outputOwners {
		if owned == path || isWithin(path, owned) || isWithin(owned, path) {
			return owner, true
		}
	}

	return "", false
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
