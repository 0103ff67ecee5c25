package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/distbuild/distbuild/util"
)

// DependencyConflictError is returned in strict mode when two library files share a name but not their content.
type DependencyConflictError struct {
	Name   string
	Kept   string
	Ignore string
}

func (err DependencyConflictError) Error() string {
	return fmt.Sprintf("library %s is provided by both %s and %s with different content", err.Name, err.Kept, err.Ignore)
}

// LibrarySet is the library globs of one module, relative to its source root.
type LibrarySet struct {
	BaseDir  string
	Patterns []string
}

// CopyDependencies copies the library files matched by every set into dest, flattened and de-duplicated
// by file name. The first match wins; later matches with different content are logged, or rejected with
// DependencyConflictError when strict is set. It returns the names of the copied files.
func CopyDependencies(ctx context.Context, sets []LibrarySet, dest string, strict bool) ([]string, error) {
	logger := log.LoggerFromContext(ctx)

	var files []string

	// Set order, then pattern order, decides which file wins.
	for _, set := range sets {
		for _, pattern := range set.Patterns {
			matches, err := util.GlobFiles(set.BaseDir, pattern)
			if err != nil {
				return nil, err
			}

			files = append(files, matches...)
		}
	}

	files = util.RemoveDuplicatesFromList(files)

	if err := os.RemoveAll(dest); err != nil {
		return nil, errors.New(err)
	}

	if err := os.MkdirAll(dest, os.ModePerm); err != nil {
		return nil, errors.New(err)
	}

	var (
		copied []string
		owners = make(map[string]string, len(files))
	)

	for _, file := range files {
		name := filepath.Base(file)

		if kept, ok := owners[name]; ok {
			equal, err := util.FilesEqual(kept, file)
			if err != nil {
				return nil, err
			}

			if equal {
				continue
			}

			if strict {
				return nil, errors.New(DependencyConflictError{Name: name, Kept: kept, Ignore: file})
			}

			logger.Warnf("Library %s from %s differs from %s, keeping the first", name, file, kept)

			continue
		}

		if err := util.CopyFile(file, filepath.Join(dest, name)); err != nil {
			return nil, err
		}

		owners[name] = file
		copied = append(copied, name)
	}

	return copied, nil
}
