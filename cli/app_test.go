package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/distbuild/distbuild/cli"
	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/config"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definition = `
product "mirthconnect" {
  version    = "4.5.2"
  build_time = "2024-03-01T12:00:00Z"
}

module "server" {
  source   = "server"
  prebuilt = "server/classes"

  package "mirth-server" {
    include = ["com/mirth/connect/server/**"]
    stage   = "server-lib"
  }
}

resource "conf" {
  role   = "configuration"
  source = "server/conf"
  dest   = "conf"
}

distribution {
  formats        = ["tar.gz"]
  required_files = ["server-lib/mirth-server.jar", "conf/mirth.properties"]
}
`

func newProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	files := map[string]string{
		config.DefaultConfigFile:                              definition,
		"server/classes/com/mirth/connect/server/Mirth.class": "class",
		"server/conf/mirth.properties":                        "version = @@VERSION@@\n",
	}

	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return dir
}

// run executes the app with fresh options, returning stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	opts := options.NewBuildOptionsWithWriters(&stdout, &stderr)
	app := cli.NewApp(opts)

	ctx := log.ContextWithLogger(context.Background(), opts.Logger)
	argv := append([]string{cli.AppName, "--working-dir", dir, "--no-summary", "--no-color"}, args...)

	err := app.RunContext(ctx, argv)

	return stdout.String(), err
}

func TestDistDevThenChecksumVerify(t *testing.T) {
	t.Parallel()

	dir := newProject(t)

	_, err := run(t, dir, "dist-dev")
	require.NoError(t, err)

	archive := filepath.Join(dir, "build", "dist", "mirthconnect-4.5.2.tar.gz")
	assert.FileExists(t, archive)
	assert.FileExists(t, archive+".sha256")
	assert.NoFileExists(t, archive+".asc")

	_, err = run(t, dir, "checksum", "--verify")
	require.NoError(t, err)

	out, err := run(t, dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestChecksumCommandWritesSidecars(t *testing.T) {
	t.Parallel()

	dir := newProject(t)

	_, err := run(t, dir, "dist-dev", "--checksum-algorithm", "sha512")
	require.NoError(t, err)

	out, err := run(t, dir, "checksum", "--algorithm", "blake2b-256", "build/dist/mirthconnect-4.5.2.tar.gz")
	require.NoError(t, err)
	assert.Contains(t, out, "mirthconnect-4.5.2.tar.gz.blake2b-256")
}

func TestPlanAndInfo(t *testing.T) {
	t.Parallel()

	dir := newProject(t)

	out, err := run(t, dir, "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "Level 0:")
	assert.Contains(t, out, "server:compile")
	assert.Contains(t, out, "archive-tar.gz")

	out, err = run(t, dir, "plan", "modules")
	require.NoError(t, err)
	assert.NotContains(t, out, "stage")

	out, err = run(t, dir, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "mirthconnect")
	assert.Contains(t, out, "4.5.2")
	assert.Contains(t, out, "mirth-server")

	out, err = run(t, dir, "--product-version", "4.6.0", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "4.6.0")
}

func TestExitCodes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		setup    func(t *testing.T, dir string)
		args     []string
		exitCode int
	}{
		{
			name:     "unknown module",
			args:     []string{"build", "nope"},
			exitCode: common.ExitCodeConfiguration,
		},
		{
			name:     "unknown plan target",
			args:     []string{"plan", "nope"},
			exitCode: common.ExitCodeConfiguration,
		},
		{
			name: "missing definition",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				require.NoError(t, os.Remove(filepath.Join(dir, config.DefaultConfigFile)))
			},
			args:     []string{"build"},
			exitCode: common.ExitCodeConfiguration,
		},
		{
			name:     "staged tree missing",
			args:     []string{"validate"},
			exitCode: common.ExitCodeFailure,
		},
		{
			name: "failed compile",
			setup: func(t *testing.T, dir string) {
				t.Helper()
				require.NoError(t, os.RemoveAll(filepath.Join(dir, "server", "classes")))
			},
			args:     []string{"build"},
			exitCode: common.ExitCodeFailure,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := newProject(t)
			if tc.setup != nil {
				tc.setup(t, dir)
			}

			_, err := run(t, dir, tc.args...)
			require.Error(t, err)

			var withCode errors.ErrorWithExitCode
			require.ErrorAs(t, err, &withCode)
			assert.Equal(t, tc.exitCode, withCode.ExitCode)
		})
	}
}

func TestCleanRemovesOutputs(t *testing.T) {
	t.Parallel()

	dir := newProject(t)

	_, err := run(t, dir, "build")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "build"))

	_, err = run(t, dir, "clean")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	assert.DirExists(t, filepath.Join(dir, "server", "classes"))
}

func TestEnvFlag(t *testing.T) {
	t.Parallel()

	dir := newProject(t)
	path := filepath.Join(dir, config.DefaultConfigFile)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bytes.Replace(content, []byte(`"4.5.2"`), []byte(`env("RELEASE", "0.0.1")`), 1), 0o644))

	out, err := run(t, dir, "--env", "RELEASE=5.0.0", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "5.0.0")

	_, err = run(t, dir, "--env", "RELEASE", "info")
	require.Error(t, err)
}
