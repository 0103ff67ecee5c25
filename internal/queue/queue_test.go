package queue_test

import (
	"testing"

	"github.com/distbuild/distbuild/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ready returns the names of the entries handed out by GetReady.
func ready(t *testing.T, q *queue.Queue) []string {
	t.Helper()

	entries, _ := q.GetReady()

	result := make([]string, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entry.Name)
	}

	return result
}

func TestGetReady(t *testing.T) {
	t.Parallel()

	q := queue.NewQueue([]*queue.Entry{
		{Name: "first"},
		{Name: "second", Dependencies: []string{"first"}},
		{Name: "independent"},
		{Name: "third", Dependencies: []string{"second", "independent"}},
	})

	assert.Equal(t, []string{"first", "independent"}, ready(t, q))
	assert.Empty(t, ready(t, q), "running entries are not handed out twice")

	q.SetStatus("first", queue.StatusSucceeded)
	assert.Equal(t, []string{"second"}, ready(t, q))

	q.SetStatus("second", queue.StatusUpToDate)
	q.SetStatus("independent", queue.StatusSucceeded)
	assert.Equal(t, []string{"third"}, ready(t, q))

	q.SetStatus("third", queue.StatusSucceeded)
	assert.True(t, q.Finished())
}

func TestFailEntryBlocksTransitiveDependents(t *testing.T) {
	t.Parallel()

	q := queue.NewQueue([]*queue.Entry{
		{Name: "a"},
		{Name: "b", Dependencies: []string{"a"}},
		{Name: "c", Dependencies: []string{"b"}},
		{Name: "other"},
	})

	require.Len(t, ready(t, q), 2)

	blocked := q.FailEntry("a")
	assert.ElementsMatch(t, []string{"b", "c"}, blocked)

	status, ok := q.Status("c")
	require.True(t, ok)
	assert.Equal(t, queue.StatusBlocked, status)
	assert.False(t, q.Finished(), "independent branch still running")

	q.SetStatus("other", queue.StatusSucceeded)
	assert.True(t, q.Finished())

	for _, entry := range q.Entries() {
		if entry.Status == queue.StatusBlocked {
			assert.Equal(t, "a", entry.BlockedBy)
		}
	}
}

func TestFinalizerRunsAfterFailure(t *testing.T) {
	t.Parallel()

	q := queue.NewQueue([]*queue.Entry{
		{Name: "package"},
		{Name: "cleanup", After: []string{"package"}},
	})

	assert.Equal(t, []string{"package"}, ready(t, q))
	q.FailEntry("package")

	assert.Equal(t, []string{"cleanup"}, ready(t, q))
}

func TestFinalizerBlockedWhenNothingRan(t *testing.T) {
	t.Parallel()

	q := queue.NewQueue([]*queue.Entry{
		{Name: "compile"},
		{Name: "package", Dependencies: []string{"compile"}},
		{Name: "cleanup", After: []string{"package"}},
	})

	ready(t, q)
	q.FailEntry("compile")

	entries, blocked := q.GetReady()
	assert.Empty(t, entries)
	assert.Equal(t, []string{"cleanup"}, blocked)
	assert.Equal(t, "compile", q.BlockedBy("cleanup"))

	status, _ := q.Status("cleanup")
	assert.Equal(t, queue.StatusBlocked, status)
	assert.True(t, q.Finished())
}

func TestBlockPending(t *testing.T) {
	t.Parallel()

	q := queue.NewQueue([]*queue.Entry{{Name: "a"}, {Name: "b", Dependencies: []string{"a"}}})
	ready(t, q)

	assert.Equal(t, []string{"b"}, q.BlockPending("cancelled"))
	assert.False(t, q.Finished())
}

func TestBlockedFinalizerBlocksItsDependents(t *testing.T) {
	t.Parallel()

	q := queue.NewQueue([]*queue.Entry{
		{Name: "compile"},
		{Name: "archive", Dependencies: []string{"compile"}},
		{Name: "checksum", After: []string{"archive"}},
		{Name: "sign", Dependencies: []string{"checksum"}},
		{Name: "unrelated"},
	})

	assert.Equal(t, []string{"compile", "unrelated"}, ready(t, q))
	assert.Equal(t, []string{"archive"}, q.FailEntry("compile"))

	entries, blocked := q.GetReady()
	assert.Empty(t, entries)
	assert.Equal(t, []string{"checksum", "sign"}, blocked)
	assert.Equal(t, "compile", q.BlockedBy("sign"))

	_, blocked = q.GetReady()
	assert.Empty(t, blocked, "blocked entries are reported once")
}
