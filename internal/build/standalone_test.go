package build_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/distbuild/distbuild/internal/build"
	"github.com/distbuild/distbuild/internal/dist"
	"github.com/distbuild/distbuild/internal/stamp"
	"github.com/distbuild/distbuild/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumAndVerifyArchives(t *testing.T) {
	t.Parallel()

	cfg := newProject(t, "")
	b := newBuild(t, cfg, func(opts *options.BuildOptions) { opts.ChecksumAlgorithm = "sha512" })

	_, err := b.Run(context.Background(), build.TaskDist)
	require.NoError(t, err)

	archives, err := b.FindArchives()
	require.NoError(t, err)
	assert.Len(t, archives, 3, "two distributions and one extension zip")

	sidecars, err := b.ChecksumArchives(context.Background())
	require.NoError(t, err)
	assert.Len(t, sidecars, 3)

	for _, sidecar := range sidecars {
		assert.Equal(t, stamp.SHA512.Extension(), filepath.Ext(sidecar))
	}

	require.NoError(t, b.VerifyArchives(context.Background()))

	tarball := b.Packager.ArchivePath(dist.FormatTarGz)
	require.NoError(t, os.WriteFile(tarball, []byte("tampered"), 0o644))

	err = b.VerifyArchives(context.Background())

	var mismatch stamp.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, filepath.Base(tarball), filepath.Base(mismatch.File))
}

func TestChecksumWithoutArchives(t *testing.T) {
	t.Parallel()

	_, err := newBuild(t, newProject(t, "")).ChecksumArchives(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no archives found")
}

func TestValidateStaged(t *testing.T) {
	t.Parallel()

	cfg := newProject(t, "")
	b := newBuild(t, cfg)

	var validationErr dist.ValidationError
	require.ErrorAs(t, b.ValidateStaged(), &validationErr)

	_, err := b.Run(context.Background(), build.TaskStage)
	require.NoError(t, err)
	require.NoError(t, b.ValidateStaged())
}
