package classify

import (
	"io/fs"
	"path/filepath"
	"slices"
	"sort"

	"github.com/distbuild/distbuild/internal/errors"
)

// Result maps package names to the relative paths assigned to them.
type Result struct {
	Packages map[string][]string
	// Order lists the package names in rule order.
	Order        []string
	Unclassified []string
}

// Paths returns the sorted paths of the named package.
func (result *Result) Paths(pkg string) []string {
	return result.Packages[pkg]
}

// Classifier applies an ordered rule table.
type Classifier struct {
	module string
	rules  []compiledRule
}

// New compiles the rules of a module.
func New(module string, rules []Rule) (*Classifier, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	return &Classifier{module: module, rules: compiled}, nil
}

// ClassifyTree walks the compiled-unit tree under root and classifies every regular file.
func (classifier *Classifier) ClassifyTree(root string) (*Result, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		paths = append(paths, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, errors.New(err)
	}

	return classifier.Classify(paths)
}

// Classify assigns slash separated relative paths to packages. Rules are applied in priority order,
// then declaration order; within a rule, excludes are evaluated after includes. A path matched by more
// than one package is a ClassificationConflictError unless every rule that matched it allows overlap.
func (classifier *Classifier) Classify(paths []string) (*Result, error) {
	result := &Result{Packages: make(map[string][]string)}

	for _, rule := range classifier.rules {
		if _, ok := result.Packages[rule.Package]; !ok {
			result.Packages[rule.Package] = []string{}
			result.Order = append(result.Order, rule.Package)
		}
	}

	var conflicts []Conflict

	for _, path := range sortedUnique(paths) {
		var (
			packages     []string
			allowOverlap = true
		)

		for _, rule := range classifier.rules {
			if !rule.matches(path) {
				continue
			}

			allowOverlap = allowOverlap && rule.AllowOverlap

			if !slices.Contains(packages, rule.Package) {
				packages = append(packages, rule.Package)
			}
		}

		if len(packages) == 0 {
			result.Unclassified = append(result.Unclassified, path)
			continue
		}

		if len(packages) > 1 && !allowOverlap {
			conflicts = append(conflicts, Conflict{Path: path, Packages: packages})
			continue
		}

		for _, pkg := range packages {
			result.Packages[pkg] = append(result.Packages[pkg], path)
		}
	}

	if len(conflicts) > 0 {
		return nil, errors.New(ClassificationConflictError{Module: classifier.module, Conflicts: conflicts})
	}

	return result, nil
}

func sortedUnique(paths []string) []string {
	sorted := slices.Clone(paths)
	sort.Strings(sorted)

	return slices.Compact(sorted)
}
