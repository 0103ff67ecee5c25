// Package registry holds the set of source modules and their upstream requirements.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/distbuild/distbuild/internal/errors"
)

// Module is a source module built into a compiled-unit directory.
type Module struct {
	Name       string
	SourceRoot string
	// OutputDir receives the compiled units.
	OutputDir string
	// Requires lists the modules whose pipelines must complete before this module compiles.
	Requires []string
}

// DuplicateModuleError is returned when a module name is added twice.
type DuplicateModuleError struct {
	Name string
}

func (err DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %q is already registered", err.Name)
}

// UnknownModuleError is returned when a module requires a module that was never added.
type UnknownModuleError struct {
	Name       string
	RequiredBy string
}

func (err UnknownModuleError) Error() string {
	if err.RequiredBy == "" {
		return fmt.Sprintf("module %q is not registered", err.Name)
	}

	return fmt.Sprintf("module %q requires unknown module %q", err.RequiredBy, err.Name)
}

// ModuleCycleError lists the modules of a requirement cycle.
type ModuleCycleError []string

func (err ModuleCycleError) Error() string {
	return "Found a requirement cycle between modules: " + strings.Join([]string(err), " -> ")
}

// Registry is an ordered set of modules.
type Registry struct {
	modules map[string]*Module
	order   []string
	mu      sync.RWMutex
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Add registers the module.
func (registry *Registry) Add(module *Module) error {
	if module == nil || module.Name == "" {
		return errors.Errorf("module name must not be empty")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, ok := registry.modules[module.Name]; ok {
		return errors.New(DuplicateModuleError{Name: module.Name})
	}

	clone := *module
	clone.Requires = slices.Clone(module.Requires)

	registry.modules[module.Name] = &clone
	registry.order = append(registry.order, module.Name)

	return nil
}

// Get returns the named module.
func (registry *Registry) Get(name string) (*Module, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	module, ok := registry.modules[name]

	return module, ok
}

// Names returns module names in registration order.
func (registry *Registry) Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	return slices.Clone(registry.order)
}

// Validate checks that every requirement is known and that requirements are acyclic.
func (registry *Registry) Validate() error {
	_, err := registry.Sorted()
	return err
}

// Sorted returns the modules ordered so that every module follows the modules it requires.
func (registry *Registry) Sorted() ([]*Module, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var (
		sorted           = make([]*Module, 0, len(registry.order))
		visited          = make(map[string]bool, len(registry.order))
		currentTraversal []string
	)

	var visit func(name, requiredBy string) error

	visit = func(name, requiredBy string) error {
		if visited[name] {
			return nil
		}

		module, ok := registry.modules[name]
		if !ok {
			return errors.New(UnknownModuleError{Name: name, RequiredBy: requiredBy})
		}

		if idx := slices.Index(currentTraversal, name); idx >= 0 {
			return errors.New(ModuleCycleError(append(slices.Clone(currentTraversal[idx:]), name)))
		}

		currentTraversal = append(currentTraversal, name)

		for _, required := range module.Requires {
			if err := visit(required, name); err != nil {
				return err
			}
		}

		currentTraversal = currentTraversal[:len(currentTraversal)-1]
		visited[name] = true
		sorted = append(sorted, module)

		return nil
	}

	for _, name := range registry.order {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}

	return sorted, nil
}

// Upstream returns every module the named module transitively requires, nearest first.
func (registry *Registry) Upstream(name string) ([]string, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	module, ok := registry.modules[name]
	if !ok {
		return nil, errors.New(UnknownModuleError{Name: name})
	}

	var (
		upstream []string
		seen     = map[string]bool{name: true}
		queue    = slices.Clone(module.Requires)
	)

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if seen[next] {
			continue
		}

		seen[next] = true
		upstream = append(upstream, next)

		if required, ok := registry.modules[next]; ok {
			queue = append(queue, required.Requires...)
		}
	}

	return upstream, nil
}
