// Package dist validates a staged tree and packages it into distribution archives.
package dist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/distbuild/distbuild/internal/errors"
)

// EntryKind is the expected type of a required entry.
type EntryKind string

const (
	KindFile EntryKind = "file"
	KindDir  EntryKind = "directory"
)

// MissingEntry is a required entry absent from the staged tree.
type MissingEntry struct {
	Path string
	Kind EntryKind
	// Reason is set when the path exists with the wrong type.
	Reason string
}

func (entry MissingEntry) String() string {
	if entry.Reason != "" {
		return fmt.Sprintf("%s (%s: %s)", entry.Path, entry.Kind, entry.Reason)
	}

	return fmt.Sprintf("%s (%s)", entry.Path, entry.Kind)
}

// ValidationError lists every required entry missing from a staged tree.
type ValidationError struct {
	Root    string
	Missing []MissingEntry
}

func (err ValidationError) Error() string {
	lines := make([]string, 0, len(err.Missing))
	for _, entry := range err.Missing {
		lines = append(lines, "  "+entry.String())
	}

	return fmt.Sprintf("staged tree %s is missing %d required entr(ies):\n%s", err.Root, len(err.Missing), strings.Join(lines, "\n"))
}

// MissingPaths returns the relative paths of the missing entries.
func (err ValidationError) MissingPaths() []string {
	paths := make([]string, 0, len(err.Missing))
	for _, entry := range err.Missing {
		paths = append(paths, entry.Path)
	}

	return paths
}

// Requirements are the entries a staged tree must contain, relative to its root.
type Requirements struct {
	Files []string
	Dirs  []string
}

// Validate checks every required file and directory under root. It never stops at the first miss:
// the returned ValidationError lists them all, files first, in declaration order.
func Validate(root string, requirements Requirements) error {
	var missing []MissingEntry

	check := func(rel string, kind EntryKind) {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))

		switch {
		case err != nil:
			missing = append(missing, MissingEntry{Path: rel, Kind: kind})
		case kind == KindDir && !info.IsDir():
			missing = append(missing, MissingEntry{Path: rel, Kind: kind, Reason: "not a directory"})
		case kind == KindFile && !info.Mode().IsRegular():
			missing = append(missing, MissingEntry{Path: rel, Kind: kind, Reason: "not a regular file"})
		}
	}

	for _, file := range requirements.Files {
		check(file, KindFile)
	}

	for _, dir := range requirements.Dirs {
		check(dir, KindDir)
	}

	if len(missing) > 0 {
		return errors.New(ValidationError{Root: root, Missing: missing})
	}

	return nil
}
