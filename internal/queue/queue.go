// Package queue tracks the run state of planned tasks.
//
// The queue keeps entries in the order they were planned (dependencies first) and hands
// out entries whose prerequisites are satisfied:
//  1. An entry is ready when every hard dependency finished successfully (succeeded or up to date)
//     and every ordering-only predecessor reached a terminal state.
//  2. When an entry fails, every pending entry that transitively depends on it is marked blocked.
//     Ordering-only edges do not propagate failures.
//  3. An entry with ordering-only predecessors that were all blocked is blocked as well, since
//     there is nothing left for it to follow.
package queue

import (
	"slices"
	"sync"
)

// Status is the run state of a queue entry.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusUpToDate
	StatusFailed
	StatusBlocked
)

var statusNames = map[Status]string{
	StatusPending:   "pending",
	StatusRunning:   "running",
	StatusSucceeded: "succeeded",
	StatusUpToDate:  "up-to-date",
	StatusFailed:    "failed",
	StatusBlocked:   "blocked",
}

func (status Status) String() string {
	return statusNames[status]
}

// IsTerminal reports whether the status can no longer change.
func (status Status) IsTerminal() bool {
	return status >= StatusSucceeded
}

// IsSuccess reports whether dependents may run after an entry in this status.
func (status Status) IsSuccess() bool {
	return status == StatusSucceeded || status == StatusUpToDate
}

// Entry is a single task in the queue.
type Entry struct {
	Name string
	// Dependencies must all succeed before the entry runs.
	Dependencies []string
	// After only orders the entry; the predecessors may fail.
	After []string
	// BlockedBy is the failed entry that caused this entry to be blocked.
	BlockedBy string
	Status    Status
}

// Queue holds entries and their statuses.
type Queue struct {
	index      map[string]*Entry
	dependents map[string][]string
	entries    []*Entry
	mu         sync.Mutex
}

// NewQueue creates a queue from entries already sorted so that dependencies come first.
func NewQueue(entries []*Entry) *Queue {
	q := &Queue{
		entries:    entries,
		index:      make(map[string]*Entry, len(entries)),
		dependents: make(map[string][]string),
	}

	for _, entry := range entries {
		q.index[entry.Name] = entry
	}

	for _, entry := range entries {
		for _, dep := range entry.Dependencies {
			q.dependents[dep] = append(q.dependents[dep], entry.Name)
		}
	}

	return q
}

// Entries returns the queue entries in planned order.
func (q *Queue) Entries() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.entries)
}

// Status returns the status of the named entry.
func (q *Queue) Status(name string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.index[name]
	if !ok {
		return StatusPending, false
	}

	return entry.Status, true
}

// GetReady returns pending entries whose prerequisites are satisfied and marks them running.
// It also returns the names of entries it blocked because all their ordering-only predecessors
// were blocked, together with the dependents blocked in turn.
func (q *Queue) GetReady() (ready []*Entry, blocked []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, entry := range q.entries {
		if entry.Status != StatusPending {
			continue
		}

		if !q.dependenciesSucceeded(entry) || !q.predecessorsFinished(entry) {
			continue
		}

		if q.allPredecessorsBlocked(entry) {
			entry.Status = StatusBlocked
			entry.BlockedBy = q.index[entry.After[0]].BlockedBy

			blocked = append(blocked, entry.Name)
			blocked = append(blocked, q.blockDependents(entry.Name, entry.BlockedBy)...)

			continue
		}

		entry.Status = StatusRunning
		ready = append(ready, entry)
	}

	return ready, blocked
}

// BlockedBy returns the failed entry that caused the named entry to be blocked.
func (q *Queue) BlockedBy(name string) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry, ok := q.index[name]; ok {
		return entry.BlockedBy
	}

	return ""
}

// SetStatus sets the status of the named entry.
func (q *Queue) SetStatus(name string, status Status) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry, ok := q.index[name]; ok {
		entry.Status = status
	}
}

// FailEntry marks the named entry failed and blocks every pending entry that transitively depends on it.
// It returns the names of the newly blocked entries.
func (q *Queue) FailEntry(name string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.index[name]
	if !ok {
		return nil
	}

	entry.Status = StatusFailed

	return q.blockDependents(name, name)
}

// BlockPending marks every pending entry blocked, used when the run is cancelled.
func (q *Queue) BlockPending(cause string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var blocked []string

	for _, entry := range q.entries {
		if entry.Status == StatusPending {
			entry.Status = StatusBlocked
			entry.BlockedBy = cause
			blocked = append(blocked, entry.Name)
		}
	}

	return blocked
}

// Finished reports whether every entry reached a terminal state.
func (q *Queue) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, entry := range q.entries {
		if !entry.Status.IsTerminal() {
			return false
		}
	}

	return true
}

func (q *Queue) blockDependents(name, cause string) []string {
	var blocked []string

	stack := slices.Clone(q.dependents[name])

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entry := q.index[next]
		if entry == nil || entry.Status != StatusPending {
			continue
		}

		entry.Status = StatusBlocked
		entry.BlockedBy = cause
		blocked = append(blocked, entry.Name)

		stack = append(stack, q.dependents[next]...)
	}

	return blocked
}

func (q *Queue) dependenciesSucceeded(entry *Entry) bool {
	for _, dep := range entry.Dependencies {
		if depEntry, ok := q.index[dep]; ok && !depEntry.Status.IsSuccess() {
			return false
		}
	}

	return true
}

func (q *Queue) predecessorsFinished(entry *Entry) bool {
	for _, name := range entry.After {
		if pred, ok := q.index[name]; ok && !pred.Status.IsTerminal() {
			return false
		}
	}

	return true
}

func (q *Queue) allPredecessorsBlocked(entry *Entry) bool {
	if len(entry.After) == 0 {
		return false
	}

	for _, name := range entry.After {
		if pred, ok := q.index[name]; !ok || pred.Status != StatusBlocked {
			return false
		}
	}

	return true
}
