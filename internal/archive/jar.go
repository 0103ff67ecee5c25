package archive

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/distbuild/distbuild/internal/errors"
)

const (
	manifestPath       = "META-INF/MANIFEST.MF"
	manifestLineLength = 72
)

// Manifest is the metadata written to META-INF/MANIFEST.MF.
type Manifest struct {
	Attributes map[string]string
	MainClass  string
	ClassPath  []string
}

// IsEmpty reports whether the manifest carries nothing beyond the version header.
func (manifest Manifest) IsEmpty() bool {
	return manifest.MainClass == "" && len(manifest.ClassPath) == 0 && len(manifest.Attributes) == 0
}

// Bytes renders the manifest with CRLF line endings and 72 byte continuation lines.
func (manifest Manifest) Bytes() []byte {
	var buf bytes.Buffer

	writeManifestLine(&buf, "Manifest-Version", "1.0")

	if manifest.MainClass != "" {
		writeManifestLine(&buf, "Main-Class", manifest.MainClass)
	}

	if len(manifest.ClassPath) > 0 {
		writeManifestLine(&buf, "Class-Path", strings.Join(manifest.ClassPath, " "))
	}

	keys := make([]string, 0, len(manifest.Attributes))
	for key := range manifest.Attributes {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		writeManifestLine(&buf, key, manifest.Attributes[key])
	}

	buf.WriteString("\r\n")

	return buf.Bytes()
}

func writeManifestLine(buf *bytes.Buffer, key, value string) {
	line := key + ": " + value

	for len(line) > manifestLineLength {
		buf.WriteString(line[:manifestLineLength])
		buf.WriteString("\r\n")

		line = " " + line[manifestLineLength:]
	}

	buf.WriteString(line)
	buf.WriteString("\r\n")
}

// Source is a set of relative paths under a root directory.
type Source struct {
	Root  string
	Paths []string
}

// WriteJar writes the sources into a jar at dest. Paths are slash separated; parent directory entries
// are created, and every entry is stamped with modTime so identical inputs yield identical bytes.
// A path present in several sources is taken from the first one.
func WriteJar(dest string, manifest Manifest, sources []Source, modTime time.Time) error {
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return errors.New(err)
	}

	type entry struct {
		src, name string
	}

	var (
		entries []entry
		seen    = make(map[string]bool)
		dirs    = make(map[string]bool)
	)

	for _, source := range sources {
		for _, rel := range source.Paths {
			if seen[rel] || rel == manifestPath {
				continue
			}

			seen[rel] = true
			entries = append(entries, entry{src: filepath.Join(source.Root, filepath.FromSlash(rel)), name: rel})

			for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
				dirs[dir] = true
			}
		}
	}

	slices.SortFunc(entries, func(a, b entry) int { return strings.Compare(a.name, b.name) })

	file, err := os.Create(dest)
	if err != nil {
		return errors.New(err)
	}
	defer file.Close()

	writer := NewZipWriter(file, modTime)

	if err := writer.AddDir("META-INF", DefaultDirMode); err != nil {
		return err
	}

	if err := writer.AddBytes(manifestPath, manifest.Bytes(), DefaultFileMode); err != nil {
		return err
	}

	sortedDirs := make([]string, 0, len(dirs))
	for dir := range dirs {
		if dir != "META-INF" {
			sortedDirs = append(sortedDirs, dir)
		}
	}

	sort.Strings(sortedDirs)

	for _, dir := range sortedDirs {
		if err := writer.AddDir(dir, DefaultDirMode); err != nil {
			return err
		}
	}

	for _, e := range entries {
		if err := writer.AddFile(e.name, e.src, DefaultFileMode); err != nil {
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return err
	}

	return errors.WithStackTrace(file.Close())
}
