// Package util contains filesystem and collection helpers shared by the build packages.
package util

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/mattn/go-zglob"
	"github.com/mitchellh/go-homedir"
)

// FileExists returns true if the given file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir returns true if the path points to a directory.
func IsDir(path string) bool {
	fileInfo, err := os.Stat(path)
	return err == nil && fileInfo.IsDir()
}

// IsFile returns true if the path points to a file.
func IsFile(path string) bool {
	fileInfo, err := os.Stat(path)
	return err == nil && !fileInfo.IsDir()
}

// EnsureDirectory creates a directory at this path if it does not exist, or error if the path exists and is a file.
func EnsureDirectory(path string) error {
	if IsFile(path) {
		return errors.New(PathIsNotDirectory{path})
	}

	return errors.WithStackTrace(os.MkdirAll(path, os.ModePerm))
}

// CanonicalPath returns the canonical version of the given path, relative to the given base path. That is, if the given path is a
// relative path, assume it is relative to the given base path. A leading `~` is expanded to the home directory.
func CanonicalPath(path string, basePath string) (string, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return "", errors.New(err)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(basePath, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.New(err)
	}

	return filepath.Clean(absPath), nil
}

// GlobFiles expands the given `**` aware glob patterns relative to basePath and returns the sorted, de-duplicated
// regular files they match. Patterns that match nothing are not an error.
func GlobFiles(basePath string, patterns ...string) ([]string, error) {
	var files []string

	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(basePath, pattern)
		}

		matches, err := zglob.Glob(pattern)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, errors.Errorf("invalid glob %q: %w", pattern, err)
		}

		for _, match := range matches {
			if IsFile(match) {
				files = append(files, filepath.Clean(match))
			}
		}
	}

	sort.Strings(files)

	return RemoveDuplicatesFromList(files), nil
}

// GlobBase returns the leading directory of the pattern that contains no glob metacharacters.
func GlobBase(pattern string) string {
	parts := strings.Split(filepath.ToSlash(pattern), "/")

	for i, part := range parts {
		if strings.ContainsAny(part, "*?[{") {
			return filepath.FromSlash(strings.Join(parts[:i], "/"))
		}
	}

	return filepath.Dir(pattern)
}

// CopyFile copies a file from source to destination, creating parent directories and keeping the source permissions.
func CopyFile(source string, destination string) error {
	src, err := os.Open(source)
	if err != nil {
		return errors.New(err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return errors.New(err)
	}

	if err := os.MkdirAll(filepath.Dir(destination), os.ModePerm); err != nil {
		return errors.New(err)
	}

	dst, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return errors.New(err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.WithStackTraceAndPrefix(err, "Error copying %s to %s", source, destination)
	}

	return errors.WithStackTrace(dst.Close())
}

// CopyFolderContentsWithFilter copies the files and folders within the source folder into the destination folder.
// Each path relative to source is passed through the filter and only copied if the filter returns true.
func CopyFolderContentsWithFilter(source, destination string, filter func(relativePath string) bool) error {
	if err := os.MkdirAll(destination, os.ModePerm); err != nil {
		return errors.New(err)
	}

	err := filepath.WalkDir(source, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(source, path)
		if err != nil || rel == "." {
			return err
		}

		if filter != nil && !filter(filepath.ToSlash(rel)) {
			if entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		dest := filepath.Join(destination, rel)

		if entry.IsDir() {
			return os.MkdirAll(dest, os.ModePerm)
		}

		return CopyFile(path, dest)
	})

	return errors.WithStackTrace(err)
}

// FilesEqual reports whether two files have identical content.
func FilesEqual(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, errors.New(err)
	}

	infoB, err := os.Stat(b)
	if err != nil {
		return false, errors.New(err)
	}

	if infoA.Size() != infoB.Size() {
		return false, nil
	}

	contentA, err := os.ReadFile(a)
	if err != nil {
		return false, errors.New(err)
	}

	contentB, err := os.ReadFile(b)
	if err != nil {
		return false, errors.New(err)
	}

	return bytes.Equal(contentA, contentB), nil
}

// PathIsNotDirectory is returned when the given path is unexpectedly not a directory.
type PathIsNotDirectory struct {
	path string
}

func (err PathIsNotDirectory) Error() string {
	return fmt.Sprintf("%s is not a directory", err.path)
}
