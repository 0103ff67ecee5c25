package archive

import (
	"io/fs"
	"path"
	"path/filepath"

	"github.com/distbuild/distbuild/internal/errors"
)

// ModeFunc returns the mode of an archive entry given its slash separated name relative to the tree root.
type ModeFunc func(rel string, isDir bool) fs.FileMode

// DefaultModes gives directories 0755 and files 0644.
func DefaultModes(_ string, isDir bool) fs.FileMode {
	if isDir {
		return DefaultDirMode
	}

	return DefaultFileMode
}

// AddTree adds root and everything below it under prefix. Entries are added in lexical order.
func AddTree(writer Writer, root, prefix string, modes ModeFunc) error {
	if modes == nil {
		modes = DefaultModes
	}

	if prefix != "" {
		if err := writer.AddDir(prefix, modes("", true)); err != nil {
			return err
		}
	}

	err := filepath.WalkDir(root, func(fsPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, fsPath)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		rel = filepath.ToSlash(rel)
		name := path.Join(prefix, rel)

		if entry.IsDir() {
			return writer.AddDir(name, modes(rel, true))
		}

		if !entry.Type().IsRegular() {
			return errors.Errorf("unsupported file type at %s", fsPath)
		}

		return writer.AddFile(name, fsPath, modes(rel, false))
	})

	return errors.WithStackTrace(err)
}
