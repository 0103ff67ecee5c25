// Package classify splits a module's compiled-unit tree into named packages using ordered glob rules.
package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/gobwas/glob"
)

// Rule assigns the paths matched by Include and not matched by Exclude to Package.
// A rule with no include patterns matches every path.
type Rule struct {
	Module  string
	Package string
	Include []string
	Exclude []string
	// Priority orders rules before declaration order; higher runs first.
	Priority int
	// AllowOverlap permits the matched paths to also belong to other packages.
	AllowOverlap bool
}

type compiledRule struct {
	Rule

	include []glob.Glob
	exclude []glob.Glob
}

// InvalidPatternError is returned when a rule contains a glob that cannot be compiled.
type InvalidPatternError struct {
	Err     error
	Package string
	Pattern string
}

func (err InvalidPatternError) Error() string {
	return fmt.Sprintf("package %s: invalid pattern %q: %v", err.Package, err.Pattern, err.Err)
}

func (err InvalidPatternError) Unwrap() error {
	return err.Err
}

// Conflict is a path that was classified into more than one package without permission.
type Conflict struct {
	Path     string
	Packages []string
}

// ClassificationConflictError lists every conflicting path of a module.
type ClassificationConflictError struct {
	Module    string
	Conflicts []Conflict
}

func (err ClassificationConflictError) Error() string {
	lines := make([]string, 0, len(err.Conflicts))
	for _, conflict := range err.Conflicts {
		lines = append(lines, fmt.Sprintf("  %s -> %s", conflict.Path, strings.Join(conflict.Packages, ", ")))
	}

	return fmt.Sprintf("module %s: %d path(s) classified into more than one package without allow_overlap:\n%s",
		err.Module, len(err.Conflicts), strings.Join(lines, "\n"))
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))

	for _, rule := range rules {
		cr := compiledRule{Rule: rule}

		for _, pattern := range rule.Include {
			g, err := compilePattern(pattern)
			if err != nil {
				return nil, errors.New(InvalidPatternError{Package: rule.Package, Pattern: pattern, Err: err})
			}

			cr.include = append(cr.include, g)
		}

		for _, pattern := range rule.Exclude {
			g, err := compilePattern(pattern)
			if err != nil {
				return nil, errors.New(InvalidPatternError{Package: rule.Package, Pattern: pattern, Err: err})
			}

			cr.exclude = append(cr.exclude, g)
		}

		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	return compiled, nil
}

// compilePattern compiles an Ant style glob: `**/` also matches zero directories and a trailing `/`
// matches everything below the directory.
func compilePattern(pattern string) (glob.Glob, error) {
	pattern = strings.TrimPrefix(pattern, "/")

	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}

	var globs anyGlob

	for _, variant := range expandDoubleStar(pattern) {
		g, err := glob.Compile(variant, '/')
		if err != nil {
			return nil, err
		}

		globs = append(globs, g)
	}

	return globs, nil
}

// expandDoubleStar returns the pattern variants with every `**/` either kept or dropped.
func expandDoubleStar(pattern string) []string {
	idx := strings.Index(pattern, "**/")
	if idx < 0 {
		return []string{pattern}
	}

	head, tail := pattern[:idx], pattern[idx+len("**/"):]

	var variants []string

	for _, rest := range expandDoubleStar(tail) {
		variants = append(variants, head+"**/"+rest, head+rest)
	}

	return variants
}

type anyGlob []glob.Glob

func (globs anyGlob) Match(path string) bool {
	return MatchAny(globs, path)
}

// CompileGlobs compiles Ant style patterns with '/' as the separator.
func CompileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))

	for _, pattern := range patterns {
		g, err := compilePattern(pattern)
		if err != nil {
			return nil, errors.Errorf("invalid pattern %q: %w", pattern, err)
		}

		globs = append(globs, g)
	}

	return globs, nil
}

// MatchAny reports whether path matches one of the globs.
func MatchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}

	return false
}

func (rule *compiledRule) matches(path string) bool {
	if len(rule.include) > 0 && !MatchAny(rule.include, path) {
		return false
	}

	return !MatchAny(rule.exclude, path)
}
