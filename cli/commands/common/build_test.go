package common_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definition = `
product "mirthconnect" {
  version    = "4.5.2"
  build_time = "2024-03-01T12:00:00Z"
}

module "core" {
  source   = "core"
  prebuilt = "core/classes"

  package "core" {
    include = ["com/mirth/**"]
    stage   = "server-lib"
  }
}
`

func loadBuild(t *testing.T, withClasses bool) *options.BuildOptions {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, options.DefaultConfigFile)

	require.NoError(t, os.WriteFile(path, []byte(definition), 0o644))

	if withClasses {
		class := filepath.Join(dir, "core", "classes", "com", "mirth", "Core.class")
		require.NoError(t, os.MkdirAll(filepath.Dir(class), 0o755))
		require.NoError(t, os.WriteFile(class, []byte("core"), 0o644))
	}

	opts, err := options.NewBuildOptionsForTest(path)
	require.NoError(t, err)

	opts.ReportFile = filepath.Join(dir, "report.csv")

	return opts
}

func TestRunExitCodes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		target      string
		withClasses bool
		expected    int
	}{
		{name: "unknown target", target: "missing", withClasses: true, expected: common.ExitCodeConfiguration},
		{name: "task failure", target: "core:package", withClasses: false, expected: common.ExitCodeFailure},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts := loadBuild(t, tc.withClasses)

			b, err := common.LoadBuild(opts)
			require.NoError(t, err)

			err = common.Run(context.Background(), b, tc.target)
			require.Error(t, err)

			var withCode errors.ErrorWithExitCode
			require.ErrorAs(t, err, &withCode)
			assert.Equal(t, tc.expected, withCode.ExitCode)
		})
	}
}

func TestRunExecutesThePlannedTasks(t *testing.T) {
	t.Parallel()

	opts := loadBuild(t, true)

	b, err := common.LoadBuild(opts)
	require.NoError(t, err)

	require.NoError(t, common.Run(context.Background(), b, "core:package"))

	content, err := os.ReadFile(opts.ReportFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "core:package")
	assert.NotContains(t, string(content), "core:copy-deps")
}
