package taskgraph_test

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"testing"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/taskgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func mustRegister(t *testing.T, graph *taskgraph.Graph, tasks ...*taskgraph.Task) {
	t.Helper()

	for _, task := range tasks {
		if task.Action == nil {
			task.Action = noop
		}

		require.NoError(t, graph.Register(task))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	graph := taskgraph.NewGraph()
	mustRegister(t, graph, &taskgraph.Task{Name: "compile"})

	err := graph.Register(&taskgraph.Task{Name: "compile"})
	require.Error(t, err)

	var dupErr taskgraph.DuplicateTaskError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "compile", dupErr.Name)
	assert.ErrorIs(t, err, taskgraph.ErrConfiguration)
}

func TestRegisterOutputCollision(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	testCases := []struct {
		name   string
		output string
	}{
		{"same path", filepath.Join(root, "libs")},
		{"nested path", filepath.Join(root, "libs", "server.jar")},
		{"parent path", root},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			graph := taskgraph.NewGraph()
			mustRegister(t, graph, &taskgraph.Task{Name: "package", Outputs: []string{filepath.Join(root, "libs")}})

			err := graph.Register(&taskgraph.Task{Name: "other", Outputs: []string{tc.output}})

			var collision taskgraph.OutputCollisionError
			require.ErrorAs(t, err, &collision)
			assert.Equal(t, "package", collision.Owner)
			assert.ErrorIs(t, err, taskgraph.ErrConfiguration)
		})
	}
}

func TestPlanMinimalClosure(t *testing.T) {
	t.Parallel()

	graph := taskgraph.NewGraph()
	mustRegister(t, graph,
		&taskgraph.Task{Name: "donkey:compile"},
		&taskgraph.Task{Name: "server:compile", DependsOn: []string{"donkey:compile"}},
		&taskgraph.Task{Name: "client:compile"},
		&taskgraph.Task{Name: "server:package", DependsOn: []string{"server:compile"}, FinalizedBy: []string{"server:report"}},
		&taskgraph.Task{Name: "server:report"},
	)

	plan, err := graph.Plan("server:package")
	require.NoError(t, err)

	assert.Equal(t, []string{"donkey:compile", "server:compile", "server:package", "server:report"}, plan.Names())
	assert.False(t, plan.Contains("client:compile"))
	assert.Equal(t, [][]string{{"donkey:compile"}, {"server:compile"}, {"server:package"}, {"server:report"}}, plan.Levels())
}

func TestPlanUnknownTask(t *testing.T) {
	t.Parallel()

	graph := taskgraph.NewGraph()
	mustRegister(t, graph, &taskgraph.Task{Name: "stage", DependsOn: []string{"missing"}})

	_, err := graph.Plan("stage")

	var unknown taskgraph.UnknownTaskError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)
	assert.Equal(t, "stage", unknown.ReferencedBy)

	_, err = graph.Plan("nope")
	require.ErrorIs(t, err, taskgraph.ErrConfiguration)
}

func TestPlanCycle(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		tasks    []*taskgraph.Task
		expected []string
	}{
		{
			"self",
			[]*taskgraph.Task{{Name: "a", DependsOn: []string{"a"}}},
			[]string{"a", "a"},
		},
		{
			"three",
			[]*taskgraph.Task{
				{Name: "entry", DependsOn: []string{"a"}},
				{Name: "a", DependsOn: []string{"b"}},
				{Name: "b", DependsOn: []string{"c"}},
				{Name: "c", DependsOn: []string{"a"}},
			},
			[]string{"a", "b", "c", "a"},
		},
		{
			"through finalizer",
			[]*taskgraph.Task{
				{Name: "package", FinalizedBy: []string{"sign"}},
				{Name: "sign", FinalizedBy: []string{"package"}},
			},
			[]string{"package", "sign", "package"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			graph := taskgraph.NewGraph()
			mustRegister(t, graph, tc.tasks...)

			_, err := graph.Plan(tc.tasks[0].Name)

			var cycle taskgraph.CycleError
			require.ErrorAs(t, err, &cycle)
			assert.Equal(t, tc.expected, []string(cycle))
			assert.ErrorIs(t, err, taskgraph.ErrConfiguration)
		})
	}
}

// TestPlanOrderRespectsEdges builds random DAGs and checks that every task comes after its dependencies.
func TestPlanOrderRespectsEdges(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(42)) //nolint:gosec

	for iteration := range 50 {
		graph := taskgraph.NewGraph()
		count := 2 + rnd.Intn(20)

		var targets []string

		for i := range count {
			task := &taskgraph.Task{Name: fmt.Sprintf("t%d", i)}

			// Edges only point to lower indexes, so the graph is acyclic.
			for j := range i {
				if rnd.Intn(4) == 0 {
					task.DependsOn = append(task.DependsOn, fmt.Sprintf("t%d", j))
				}
			}

			targets = append(targets, task.Name)
			mustRegister(t, graph, task)
		}

		rnd.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })

		plan, err := graph.Plan(targets[:1+rnd.Intn(len(targets))]...)
		require.NoError(t, err, "iteration %d", iteration)

		names := plan.Names()
		for _, task := range plan.Tasks {
			position := slices.Index(names, task.Name)
			for _, dep := range task.DependsOn {
				depPosition := slices.Index(names, dep)
				require.GreaterOrEqual(t, depPosition, 0, "dependency %s of %s not planned", dep, task.Name)
				require.Less(t, depPosition, position, "%s must run before %s", dep, task.Name)
			}
		}
	}
}

func TestTaskExecutionErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("compiler exited with status 1")
	err := taskgraph.TaskExecutionError{Task: "a:compile", Err: cause}

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "a:compile")
}
