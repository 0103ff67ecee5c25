package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/distbuild/distbuild/internal/archive"
	"github.com/distbuild/distbuild/internal/classify"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/pipeline"
	"github.com/distbuild/distbuild/internal/registry"
	"github.com/distbuild/distbuild/internal/taskgraph"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeCompiler writes a fixed set of compiled units.
type fakeCompiler struct {
	err   error
	files []string
	calls int
}

func (compiler *fakeCompiler) Compile(_ context.Context, module *registry.Module, _ []string) error {
	compiler.calls++

	if compiler.err != nil {
		return compiler.err
	}

	for _, file := range compiler.files {
		path := filepath.Join(module.OutputDir, filepath.FromSlash(file))

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
			return err
		}
	}

	return nil
}

func (compiler *fakeCompiler) Fingerprint() string {
	return "fake"
}

func newPipeline(t *testing.T, root, name string, compiler pipeline.Compiler, rules []classify.Rule) *pipeline.Pipeline {
	t.Helper()

	sourceRoot := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(sourceRoot, 0o755))
	writeFile(t, filepath.Join(sourceRoot, "src", "Main.java"), "class Main {}")

	return &pipeline.Pipeline{
		Module: &registry.Module{
			Name:       name,
			SourceRoot: sourceRoot,
			OutputDir:  filepath.Join(root, "build", name, "classes"),
		},
		BuildDir: filepath.Join(root, "build", name),
		Compiler: compiler,
		Rules:    rules,
		ModTime:  testModTime,
	}
}

func jarEntries(t *testing.T, path string) []string {
	t.Helper()

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer reader.Close()

	var names []string

	for _, file := range reader.File {
		if !file.FileInfo().IsDir() {
			names = append(names, file.Name)
		}
	}

	return names
}

func execute(t *testing.T, tracker *pipeline.Tracker, store *taskgraph.StateStore, pipelines ...*pipeline.Pipeline) (*taskgraph.Result, error) {
	t.Helper()

	graph := taskgraph.NewGraph()

	targets := make([]string, 0, len(pipelines))
	for _, p := range pipelines {
		require.NoError(t, p.Register(graph))
		targets = append(targets, p.LastTask())
	}

	plan, err := graph.Plan(targets...)
	require.NoError(t, err)

	opts := []taskgraph.ExecuteOption{taskgraph.WithParallelism(2), taskgraph.WithObserver(tracker)}
	if store != nil {
		opts = append(opts, taskgraph.WithStateStore(store))
	}

	return plan.Execute(context.Background(), opts...)
}

func TestPipelineBuildsPackages(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	compiler := &fakeCompiler{files: []string{
		"com/mirth/connect/server/Mirth.class",
		"com/mirth/connect/server/api/Servlet.class",
		"com/mirth/connect/client/core/Client.class",
		"com/mirth/connect/model/Channel.class",
	}}

	server := newPipeline(t, root, "server", compiler, []classify.Rule{
		{Package: "mirth-server", Include: []string{"com/mirth/connect/server/**"}, Exclude: []string{"**/api/**"}},
		{Package: "mirth-client-core", Include: []string{"com/mirth/connect/client/core/**", "com/mirth/connect/model/**"}},
	})
	server.Packages = []pipeline.PackageSpec{
		{Name: "mirth-server", Manifest: archive.Manifest{MainClass: "com.mirth.connect.server.Mirth"}},
	}

	tracker := pipeline.NewTracker("server")

	_, err := execute(t, tracker, nil, server)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateDone, tracker.State("server"))

	packages := server.ArtifactPackages()
	require.Len(t, packages, 2)
	assert.Equal(t, filepath.Join(root, "build", "server", "libs", "mirth-server.jar"), packages[0].Path)
	assert.Equal(t, "com.mirth.connect.server.Mirth", packages[0].Manifest.MainClass)

	assert.Equal(t, []string{
		"META-INF/MANIFEST.MF",
		"com/mirth/connect/server/Mirth.class",
	}, jarEntries(t, packages[0].Path))

	assert.Equal(t, []string{
		"META-INF/MANIFEST.MF",
		"com/mirth/connect/client/core/Client.class",
		"com/mirth/connect/model/Channel.class",
	}, jarEntries(t, packages[1].Path))

	result := server.Classified()
	require.NotNil(t, result)
	assert.Equal(t, []string{"com/mirth/connect/server/api/Servlet.class"}, result.Unclassified)
}

func TestPipelineFailureLeavesDownstreamUnbuilt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	rules := []classify.Rule{{Package: "all"}}

	donkey := newPipeline(t, root, "donkey", &fakeCompiler{err: errors.New("Channel.java:12: error: ';' expected")}, rules)
	downstream := &fakeCompiler{files: []string{"com/mirth/Server.class"}}
	server := newPipeline(t, root, "server", downstream, rules)
	server.Module.Requires = []string{"donkey"}
	server.Upstream = []*pipeline.Pipeline{donkey}

	tracker := pipeline.NewTracker("donkey", "server")

	result, err := execute(t, tracker, nil, donkey, server)
	require.Error(t, err)

	var runErr taskgraph.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "donkey:compile", runErr.First.Task)

	assert.Equal(t, pipeline.StateFailed, tracker.State("donkey"))
	assert.Equal(t, pipeline.StateUnbuilt, tracker.State("server"))
	assert.Equal(t, []string{"donkey:compile"}, result.Failed)
	assert.Contains(t, result.Blocked, "server:compile")
	assert.Contains(t, result.Blocked, "server:copy-deps")
	assert.Zero(t, downstream.calls)
	assert.NoDirExists(t, server.PackagesDir())
}

func TestPipelineClassificationConflict(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	server := newPipeline(t, root, "server", &fakeCompiler{files: []string{
		"com/mirth/connect/server/Shared.class",
	}}, []classify.Rule{
		{Package: "mirth-server", Include: []string{"com/mirth/connect/server/**"}},
		{Package: "mirth-crypto", Include: []string{"**/Shared.class"}},
	})

	tracker := pipeline.NewTracker("server")

	result, err := execute(t, tracker, nil, server)
	require.Error(t, err)

	var conflict classify.ClassificationConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, "com/mirth/connect/server/Shared.class", conflict.Conflicts[0].Path)

	assert.Equal(t, []string{"server:classify"}, result.Failed)
	assert.Equal(t, pipeline.StateFailed, tracker.State("server"))
	assert.NoDirExists(t, server.PackagesDir())

	// The compiled tree now exists, so the conflict is caught before execution.
	require.ErrorAs(t, server.Preflight(), &conflict)
}

func TestPipelineUpToDate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	compiler := &fakeCompiler{files: []string{"com/mirth/Server.class"}}
	server := newPipeline(t, root, "server", compiler, []classify.Rule{{Package: "mirth-server"}})
	writeFile(t, filepath.Join(server.Module.SourceRoot, "lib", "commons-io.jar"), "io")
	server.Libraries = []string{"lib/*.jar"}

	store, err := taskgraph.LoadStateStore(filepath.Join(root, "build", "state.json"))
	require.NoError(t, err)

	_, err = execute(t, pipeline.NewTracker("server"), store, server)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(server.DependenciesDir(), "commons-io.jar"))

	tracker := pipeline.NewTracker("server")

	result, err := execute(t, tracker, store, server)
	require.NoError(t, err)

	assert.Equal(t, 1, compiler.calls)
	assert.True(t, slices.Contains(result.UpToDate, "server:compile"))
	assert.True(t, slices.Contains(result.UpToDate, "server:package"))
	assert.True(t, slices.Contains(result.UpToDate, "server:copy-deps"))
	assert.Equal(t, pipeline.StateDone, tracker.State("server"))
}

func TestPipelinePreflightWithoutCompiledTree(t *testing.T) {
	t.Parallel()

	server := newPipeline(t, t.TempDir(), "server", &fakeCompiler{}, []classify.Rule{{Package: "mirth-server"}})

	assert.NoError(t, server.Preflight())
}

func TestPipelineTasks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	donkey := newPipeline(t, root, "donkey", &fakeCompiler{}, nil)
	server := newPipeline(t, root, "server", &fakeCompiler{}, []classify.Rule{{Package: "mirth-server"}})
	server.Upstream = []*pipeline.Pipeline{donkey}

	tasks := server.Tasks()
	require.Len(t, tasks, 4)

	names := make([]string, 0, len(tasks))
	for _, task := range tasks {
		names = append(names, task.Name)
	}

	assert.Equal(t, []string{"server:compile", "server:classify", "server:package", "server:copy-deps"}, names)
	assert.Equal(t, []string{"donkey:copy-deps"}, tasks[0].DependsOn)
	assert.Contains(t, tasks[0].Inputs, donkey.Module.OutputDir)
	assert.Empty(t, tasks[1].Outputs)
	assert.Equal(t, []string{filepath.Join(server.PackagesDir(), "mirth-server.jar")}, tasks[2].Outputs)
	assert.Empty(t, tasks[3].Outputs)
}

// classpathCompiler records the classpath it was given.
type classpathCompiler struct {
	fakeCompiler
	classpath []string
}

func (compiler *classpathCompiler) Compile(ctx context.Context, module *registry.Module, classpath []string) error {
	compiler.classpath = classpath

	return compiler.fakeCompiler.Compile(ctx, module, classpath)
}

func TestPipelineGathersTransitiveLibraries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	rules := []classify.Rule{{Package: "all"}}

	donkey := newPipeline(t, root, "donkey", &fakeCompiler{files: []string{"com/mirth/Donkey.class"}}, rules)
	donkey.Libraries = []string{"lib/*.jar"}
	writeFile(t, filepath.Join(donkey.Module.SourceRoot, "lib", "donkey-runtime.jar"), "donkey")
	writeFile(t, filepath.Join(donkey.Module.SourceRoot, "lib", "guava.jar"), "guava-31")

	server := newPipeline(t, root, "server", &fakeCompiler{files: []string{"com/mirth/Server.class"}}, rules)
	server.Libraries = []string{"lib/*.jar"}
	server.Upstream = []*pipeline.Pipeline{donkey}
	writeFile(t, filepath.Join(server.Module.SourceRoot, "lib", "server-runtime.jar"), "server")
	writeFile(t, filepath.Join(server.Module.SourceRoot, "lib", "guava.jar"), "guava-32")

	compiler := &classpathCompiler{fakeCompiler: fakeCompiler{files: []string{"com/mirth/Cli.class"}}}
	cli := newPipeline(t, root, "cli", compiler, rules)
	cli.Upstream = []*pipeline.Pipeline{server}

	assert.Equal(t, []*pipeline.Pipeline{donkey, server}, cli.UpstreamClosure())

	_, err := execute(t, pipeline.NewTracker("donkey", "server", "cli"), nil, donkey, server, cli)
	require.NoError(t, err)

	for _, p := range []*pipeline.Pipeline{server, cli} {
		entries, err := os.ReadDir(p.DependenciesDir())
		require.NoError(t, err, p.Name())

		var names []string
		for _, entry := range entries {
			names = append(names, entry.Name())
		}

		assert.ElementsMatch(t, []string{"donkey-runtime.jar", "guava.jar", "server-runtime.jar"}, names, p.Name())
	}

	// The furthest upstream module is gathered first and wins the name.
	data, err := os.ReadFile(filepath.Join(cli.DependenciesDir(), "guava.jar"))
	require.NoError(t, err)
	assert.Equal(t, "guava-31", string(data))

	assert.Contains(t, compiler.classpath, donkey.Module.OutputDir)
	assert.Contains(t, compiler.classpath, server.Module.OutputDir)
	assert.Contains(t, compiler.classpath, filepath.Join(donkey.Module.SourceRoot, "lib", "donkey-runtime.jar"))

	tasks := cli.Tasks()
	assert.Equal(t, []string{"server:copy-deps"}, tasks[0].DependsOn)
	assert.Contains(t, tasks[0].Inputs, donkey.Module.OutputDir)
	assert.Equal(t, []string{cli.DependenciesDir()}, tasks[3].Outputs)
}
