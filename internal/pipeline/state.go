package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/queue"
)

// State is the build state of a module.
type State int

const (
	StateUnbuilt State = iota
	StateCompiling
	StateClassified
	StatePackaged
	StateDependenciesCopied
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateUnbuilt:            "unbuilt",
	StateCompiling:          "compiling",
	StateClassified:         "classified",
	StatePackaged:           "packaged",
	StateDependenciesCopied: "dependencies-copied",
	StateDone:               "done",
	StateFailed:             "failed",
}

func (state State) String() string {
	return stateNames[state]
}

// IsTerminal reports whether the state can no longer change.
func (state State) IsTerminal() bool {
	return state == StateDone || state == StateFailed
}

// next is the only forward transition allowed from each non-terminal state.
var next = map[State]State{
	StateUnbuilt:            StateCompiling,
	StateCompiling:          StateClassified,
	StateClassified:         StatePackaged,
	StatePackaged:           StateDependenciesCopied,
	StateDependenciesCopied: StateDone,
}

// InvalidTransitionError is returned for a transition the state machine does not allow.
type InvalidTransitionError struct {
	Module string
	From   State
	To     State
}

func (err InvalidTransitionError) Error() string {
	return fmt.Sprintf("module %s cannot move from %s to %s", err.Module, err.From, err.To)
}

// Tracker holds the state of every module and advances it from task completions.
// It implements taskgraph.Observer.
type Tracker struct {
	states map[string]State
	mu     sync.RWMutex
}

// NewTracker returns a tracker with every module Unbuilt.
func NewTracker(modules ...string) *Tracker {
	tracker := &Tracker{states: make(map[string]State, len(modules))}

	for _, module := range modules {
		tracker.states[module] = StateUnbuilt
	}

	return tracker
}

// State returns the state of the module.
func (tracker *Tracker) State(module string) State {
	tracker.mu.RLock()
	defer tracker.mu.RUnlock()

	return tracker.states[module]
}

// States returns a copy of all module states.
func (tracker *Tracker) States() map[string]State {
	tracker.mu.RLock()
	defer tracker.mu.RUnlock()

	states := make(map[string]State, len(tracker.states))
	for module, state := range tracker.states {
		states[module] = state
	}

	return states
}

// Transition moves the module to the given state. Failed is reachable from any non-terminal state;
// every other transition must follow the pipeline order.
func (tracker *Tracker) Transition(module string, to State) error {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	from := tracker.states[module]

	switch {
	case from.IsTerminal():
	case to == StateFailed:
		tracker.states[module] = to
		return nil
	case next[from] == to:
		tracker.states[module] = to
		return nil
	}

	return errors.New(InvalidTransitionError{Module: module, From: from, To: to})
}

// TaskStarted implements taskgraph.Observer.
func (tracker *Tracker) TaskStarted(name string) {
	module, step, ok := SplitTaskName(name)
	if !ok || step != StepCompile {
		return
	}

	_ = tracker.Transition(module, StateCompiling)
}

// TaskFinished implements taskgraph.Observer.
func (tracker *Tracker) TaskFinished(name string, status queue.Status) {
	module, step, ok := SplitTaskName(name)
	if !ok {
		return
	}

	tracker.mu.RLock()
	_, known := tracker.states[module]
	tracker.mu.RUnlock()

	if !known {
		return
	}

	switch {
	case status == queue.StatusFailed:
		_ = tracker.Transition(module, StateFailed)
	case !status.IsSuccess():
		// Blocked modules keep their state.
	case step == StepCompile:
		// An up-to-date compile never reported a start.
		if tracker.State(module) == StateUnbuilt {
			_ = tracker.Transition(module, StateCompiling)
		}
	case step == StepClassify:
		_ = tracker.Transition(module, StateClassified)
	case step == StepPackage:
		_ = tracker.Transition(module, StatePackaged)
	case step == StepCopyDependencies:
		if tracker.Transition(module, StateDependenciesCopied) == nil {
			_ = tracker.Transition(module, StateDone)
		}
	}
}

// Steps of a module pipeline, in order.
const (
	StepCompile          = "compile"
	StepClassify         = "classify"
	StepPackage          = "package"
	StepCopyDependencies = "copy-deps"
)

// TaskName returns the name of a pipeline task.
func TaskName(module, step string) string {
	return module + ":" + step
}

// SplitTaskName splits a pipeline task name into module and step.
func SplitTaskName(name string) (string, string, bool) {
	idx := strings.LastIndex(name, ":")
	if idx <= 0 {
		return "", "", false
	}

	return name[:idx], name[idx+1:], true
}
