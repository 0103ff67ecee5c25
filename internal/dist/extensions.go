package dist

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/distbuild/distbuild/internal/archive"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/worker"
	"github.com/distbuild/distbuild/pkg/log"
)

// ExtensionZips writes `<name>-<version>.zip` into outputDir for every directory directly below extensionsDir,
// at most parallelism at a time. Each zip holds the extension directory under its own name. It returns the
// written paths in name order.
func ExtensionZips(ctx context.Context, extensionsDir, outputDir, version string, modTime time.Time, parallelism int) ([]string, error) {
	entries, err := os.ReadDir(extensionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.New(err)
	}

	var (
		written []string
		mu      sync.Mutex
		pool    = worker.NewWorkerPool(ctx, parallelism)
	)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		dest := filepath.Join(outputDir, name+"-"+version+FormatZip.Extension())

		pool.Submit(name, func(ctx context.Context) error {
			if err := writeArchive(dest, FormatZip, modTime, func(writer archive.Writer) error {
				return archive.AddTree(writer, filepath.Join(extensionsDir, name), name, nil)
			}); err != nil {
				return err
			}

			log.LoggerFromContext(ctx).Debugf("Wrote %s", dest)

			mu.Lock()
			written = append(written, dest)
			mu.Unlock()

			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(written)

	return written, nil
}
