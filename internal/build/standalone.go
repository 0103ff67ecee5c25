package build

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/distbuild/distbuild/internal/dist"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/stamp"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/distbuild/distbuild/util"
	"golang.org/x/sync/errgroup"
)

// ArchivePatterns match the archives the checksum command picks up in the output directory.
var ArchivePatterns = []string{"**/*.tar.gz", "**/*.zip"}

// FindArchives returns the archives under the output directory, sorted.
func (b *Build) FindArchives() ([]string, error) {
	return util.GlobFiles(b.Config.Distribution.OutputDir, ArchivePatterns...)
}

// ChecksumArchives writes a sidecar for every given archive, or for every archive in the output directory
// when none are given. It returns the sidecar paths, sorted.
func (b *Build) ChecksumArchives(ctx context.Context, archives ...string) ([]string, error) {
	var (
		mu       sync.Mutex
		sidecars []string
	)

	err := b.forEachArchive(ctx, archives, func(path string) error {
		sidecar, err := stamp.Checksum(path, b.Checksum)
		if err != nil {
			return err
		}

		mu.Lock()
		sidecars = append(sidecars, sidecar)
		mu.Unlock()

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(sidecars)

	return sidecars, nil
}

// VerifyArchives re-checks the sidecar of every given archive, or of every archive in the output directory.
// Every mismatch is reported.
func (b *Build) VerifyArchives(ctx context.Context, archives ...string) error {
	var (
		mu   sync.Mutex
		errs = &errors.MultiError{}
	)

	err := b.forEachArchive(ctx, archives, func(path string) error {
		if err := stamp.Verify(path+b.Checksum.Extension(), b.Checksum); err != nil {
			mu.Lock()
			errs = errs.Append(err)
			mu.Unlock()

			return nil
		}

		log.LoggerFromContext(ctx).Infof("%s: OK", filepath.Base(path))

		return nil
	})
	if err != nil {
		return err
	}

	return errs.ErrorOrNil()
}

func (b *Build) forEachArchive(ctx context.Context, archives []string, fn func(path string) error) error {
	if len(archives) == 0 {
		found, err := b.FindArchives()
		if err != nil {
			return err
		}

		archives = found
	}

	if len(archives) == 0 {
		return errors.Errorf("no archives found in %s", b.Config.Distribution.OutputDir)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(max(b.Parallelism, 1))

	for _, path := range archives {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			return fn(path)
		})
	}

	return group.Wait()
}

// ValidateStaged checks the existing staging tree without building anything.
func (b *Build) ValidateStaged() error {
	return dist.Validate(b.Config.Staging.Dir, b.Packager.Requirements)
}
