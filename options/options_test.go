package options_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/distbuild/distbuild/options"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildOptionsForTest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), options.DefaultConfigFile)

	opts, err := options.NewBuildOptionsForTest(path)
	require.NoError(t, err)

	assert.Equal(t, path, opts.ConfigPath)
	assert.Equal(t, filepath.Dir(path), opts.WorkingDir)
	assert.Equal(t, log.DebugLevel, opts.LogLevel)
	assert.True(t, opts.DisableColor)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	opts := options.NewBuildOptions()
	opts.Formats = []string{"zip"}
	opts.Env["MIRTH_VERSION"] = "4.5.2"

	clone := opts.Clone()
	clone.Formats[0] = "tar.gz"
	clone.Env["MIRTH_VERSION"] = "5.0.0"

	assert.Equal(t, []string{"zip"}, opts.Formats)
	assert.Equal(t, "4.5.2", opts.Env["MIRTH_VERSION"])
}

func TestLookupEnvPrefersOverrides(t *testing.T) {
	t.Setenv("DISTBUILD_TEST_LOOKUP", "process")

	opts := options.NewBuildOptions()

	value, ok := opts.LookupEnv("DISTBUILD_TEST_LOOKUP")
	require.True(t, ok)
	assert.Equal(t, "process", value)

	opts.Env["DISTBUILD_TEST_LOOKUP"] = "override"

	value, _ = opts.LookupEnv("DISTBUILD_TEST_LOOKUP")
	assert.Equal(t, "override", value)
}

func TestOptionsFromContext(t *testing.T) {
	t.Parallel()

	opts := options.NewBuildOptions()
	other := options.NewBuildOptions()

	ctx := context.WithValue(context.Background(), options.ContextKey, other)

	assert.Same(t, other, opts.OptionsFromContext(ctx))
	assert.Same(t, opts, opts.OptionsFromContext(context.Background()))
}
