// Package stamp substitutes the version token in staged text files and writes checksum sidecars for archives.
package stamp

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/distbuild/distbuild/internal/classify"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/gobwas/glob"
)

// DefaultToken is the version marker replaced in staged text files.
const DefaultToken = "@@VERSION@@"

// DefaultExtensions are the file types treated as text.
var DefaultExtensions = []string{
	".conf", ".css", ".htm", ".html", ".js", ".json", ".jsp", ".md",
	".properties", ".sh", ".txt", ".vmoptions", ".xml", ".yaml", ".yml",
}

// Filter selects the files whose version token is replaced. Files are picked by extension only,
// never by looking at their content.
type Filter struct {
	// Extensions is the allow-list, matched case-insensitively. Empty means DefaultExtensions.
	Extensions []string
	// Exclude holds slash separated globs, relative to the stamped root, of files to leave alone.
	Exclude []string
}

type compiledFilter struct {
	extensions map[string]bool
	exclude    []glob.Glob
}

func (filter Filter) compile() (*compiledFilter, error) {
	extensions := filter.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	compiled := &compiledFilter{extensions: make(map[string]bool, len(extensions))}

	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		compiled.extensions[ext] = true
	}

	exclude, err := classify.CompileGlobs(filter.Exclude)
	if err != nil {
		return nil, err
	}

	compiled.exclude = exclude

	return compiled, nil
}

func (filter *compiledFilter) matches(rel string) bool {
	if !filter.extensions[strings.ToLower(filepath.Ext(rel))] {
		return false
	}

	return !classify.MatchAny(filter.exclude, rel)
}

// StampVersion replaces every occurrence of token with version in the text files under root selected by filter.
// It returns the slash separated relative paths of the files that were rewritten.
func StampVersion(root, version, token string, filter Filter) ([]string, error) {
	if token == "" {
		return nil, errors.Errorf("version token must not be empty")
	}

	compiled, err := filter.compile()
	if err != nil {
		return nil, err
	}

	var (
		stamped  []string
		tokenRaw = []byte(token)
		replaced = []byte(version)
	)

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		if !compiled.matches(rel) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if !bytes.Contains(content, tokenRaw) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		if err := os.WriteFile(path, bytes.ReplaceAll(content, tokenRaw, replaced), info.Mode().Perm()); err != nil {
			return err
		}

		stamped = append(stamped, rel)

		return nil
	})
	if err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "stamping version in %s", root)
	}

	return stamped, nil
}
