// Package pipeline builds a single module: compile, classify the compiled units into packages,
// write the packages, and gather the module's external libraries.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/distbuild/distbuild/internal/archive"
	"github.com/distbuild/distbuild/internal/classify"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/registry"
	"github.com/distbuild/distbuild/internal/taskgraph"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/distbuild/distbuild/util"
)

const maxLoggedUnclassified = 5

// PackageSpec describes the file written for a package produced by the classification rules.
type PackageSpec struct {
	Manifest archive.Manifest
	Name     string
	// FileName defaults to Name + ".jar".
	FileName string
}

// ArtifactPackage is a package written by a module pipeline.
type ArtifactPackage struct {
	Manifest archive.Manifest
	Name     string
	Module   string
	Path     string
}

// Pipeline is the build definition of one module.
type Pipeline struct {
	ModTime    time.Time
	Compiler   Compiler
	Module     *registry.Module
	classified *classify.Result
	// Properties are mixed into the fingerprint of the package task.
	Properties map[string]string
	BuildDir   string
	Rules      []classify.Rule
	Packages   []PackageSpec
	// Libraries are globs, relative to the source root, of external library files.
	Libraries []string
	// Upstream pipelines must complete before this module compiles.
	Upstream []*Pipeline
	mu       sync.Mutex
	Strict   bool
}

// Name returns the module name.
func (p *Pipeline) Name() string {
	return p.Module.Name
}

// TaskName returns the name of the given pipeline step.
func (p *Pipeline) TaskName(step string) string {
	return TaskName(p.Module.Name, step)
}

// LastTask is the task that completes the pipeline.
func (p *Pipeline) LastTask() string {
	return p.TaskName(StepCopyDependencies)
}

// PackagesDir holds the written packages.
func (p *Pipeline) PackagesDir() string {
	return filepath.Join(p.BuildDir, "libs")
}

// DependenciesDir holds the gathered external libraries.
func (p *Pipeline) DependenciesDir() string {
	return filepath.Join(p.BuildDir, "deps")
}

// ArtifactPackages returns the packages the pipeline writes, in rule order.
func (p *Pipeline) ArtifactPackages() []ArtifactPackage {
	var (
		packages []ArtifactPackage
		seen     = make(map[string]bool)
	)

	add := func(name string) {
		if seen[name] {
			return
		}

		seen[name] = true

		pkg := ArtifactPackage{Name: name, Module: p.Module.Name}
		fileName := name + ".jar"

		if idx := slices.IndexFunc(p.Packages, func(spec PackageSpec) bool { return spec.Name == name }); idx >= 0 {
			pkg.Manifest = p.Packages[idx].Manifest

			if p.Packages[idx].FileName != "" {
				fileName = p.Packages[idx].FileName
			}
		}

		pkg.Path = filepath.Join(p.PackagesDir(), fileName)
		packages = append(packages, pkg)
	}

	for _, rule := range p.Rules {
		add(rule.Package)
	}

	for _, spec := range p.Packages {
		add(spec.Name)
	}

	return packages
}

// Tasks returns the pipeline tasks. The compile task depends on the last task of every upstream pipeline.
func (p *Pipeline) Tasks() []*taskgraph.Task {
	compileDeps := make([]string, 0, len(p.Upstream))
	compileInputs := []string{p.Module.SourceRoot}

	for _, upstream := range p.Upstream {
		compileDeps = append(compileDeps, upstream.LastTask())
	}

	for _, upstream := range p.UpstreamClosure() {
		compileInputs = append(compileInputs, upstream.Module.OutputDir)
	}

	packageOutputs := make([]string, 0, len(p.Rules))
	for _, pkg := range p.ArtifactPackages() {
		packageOutputs = append(packageOutputs, pkg.Path)
	}

	var (
		libraryInputs, libraryOutputs, libraryPatterns []string
		librarySets                                    = p.LibrarySets()
	)

	if len(librarySets) > 0 {
		for _, set := range librarySets {
			for _, pattern := range set.Patterns {
				libraryInputs = append(libraryInputs, filepath.Join(set.BaseDir, util.GlobBase(pattern)))
				libraryPatterns = append(libraryPatterns, filepath.Join(set.BaseDir, pattern))
			}
		}

		libraryInputs = util.RemoveDuplicatesFromList(libraryInputs)
		libraryOutputs = []string{p.DependenciesDir()}
	}

	return []*taskgraph.Task{
		{
			Name:        p.TaskName(StepCompile),
			Description: fmt.Sprintf("Compiles module %s", p.Module.Name),
			Group:       p.Module.Name,
			DependsOn:   compileDeps,
			Inputs:      compileInputs,
			Outputs:     []string{p.Module.OutputDir},
			Properties:  map[string]string{"compiler": p.Compiler.Fingerprint()},
			Action:      p.compile,
		},
		{
			Name:        p.TaskName(StepClassify),
			Description: fmt.Sprintf("Classifies the compiled units of module %s into packages", p.Module.Name),
			Group:       p.Module.Name,
			DependsOn:   []string{p.TaskName(StepCompile)},
			Action:      p.classify,
		},
		{
			Name:        p.TaskName(StepPackage),
			Description: fmt.Sprintf("Writes the packages of module %s", p.Module.Name),
			Group:       p.Module.Name,
			DependsOn:   []string{p.TaskName(StepClassify)},
			Inputs:      []string{p.Module.OutputDir},
			Outputs:     packageOutputs,
			Properties:  p.packageProperties(),
			Action:      p.writePackages,
		},
		{
			Name:        p.TaskName(StepCopyDependencies),
			Description: fmt.Sprintf("Gathers the external libraries of module %s", p.Module.Name),
			Group:       p.Module.Name,
			DependsOn:   []string{p.TaskName(StepPackage)},
			Inputs:      libraryInputs,
			Outputs:     libraryOutputs,
			Properties:  map[string]string{"libraries": strings.Join(libraryPatterns, ","), "strict": fmt.Sprint(p.Strict)},
			Action:      p.copyDependencies,
		},
	}
}

// Register adds the pipeline tasks to the graph.
func (p *Pipeline) Register(graph *taskgraph.Graph) error {
	for _, task := range p.Tasks() {
		if err := graph.Register(task); err != nil {
			return err
		}
	}

	return nil
}

// Preflight classifies an already existing compiled tree so that conflicts surface before any task runs.
// It does nothing when the module has not been compiled yet.
func (p *Pipeline) Preflight() error {
	if !util.IsDir(p.Module.OutputDir) {
		return nil
	}

	_, err := p.classifyTree()

	return err
}

// Classified returns the classification of the last run, or nil.
func (p *Pipeline) Classified() *classify.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.classified
}

// UpstreamClosure returns every pipeline the module transitively requires, upstream first.
func (p *Pipeline) UpstreamClosure() []*Pipeline {
	var (
		closure []*Pipeline
		seen    = make(map[string]bool)
		visit   func(*Pipeline)
	)

	visit = func(current *Pipeline) {
		for _, upstream := range current.Upstream {
			if seen[upstream.Name()] {
				continue
			}

			seen[upstream.Name()] = true

			visit(upstream)
			closure = append(closure, upstream)
		}
	}

	visit(p)

	return closure
}

// LibrarySets returns the library globs of the upstream closure, upstream first, followed by the module's own.
func (p *Pipeline) LibrarySets() []LibrarySet {
	var sets []LibrarySet

	for _, current := range append(p.UpstreamClosure(), p) {
		if len(current.Libraries) > 0 {
			sets = append(sets, LibrarySet{BaseDir: current.Module.SourceRoot, Patterns: current.Libraries})
		}
	}

	return sets
}

func (p *Pipeline) classpath() []string {
	var classpath []string

	for _, upstream := range p.UpstreamClosure() {
		classpath = append(classpath, upstream.Module.OutputDir)
	}

	for _, set := range p.LibrarySets() {
		if files, err := util.GlobFiles(set.BaseDir, set.Patterns...); err == nil {
			classpath = append(classpath, files...)
		}
	}

	return util.RemoveDuplicatesFromList(classpath)
}

func (p *Pipeline) compile(ctx context.Context) error {
	return p.Compiler.Compile(ctx, p.Module, p.classpath())
}

func (p *Pipeline) classifyTree() (*classify.Result, error) {
	classifier, err := classify.New(p.Module.Name, p.Rules)
	if err != nil {
		return nil, err
	}

	return classifier.ClassifyTree(p.Module.OutputDir)
}

func (p *Pipeline) classify(ctx context.Context) error {
	result, err := p.classifyTree()
	if err != nil {
		return err
	}

	logger := log.LoggerFromContext(ctx)

	if count := len(result.Unclassified); count > 0 {
		shown := result.Unclassified[:min(count, maxLoggedUnclassified)]
		logger.Warnf("%d compiled unit(s) of module %s are not part of any package: %s",
			count, p.Module.Name, strings.Join(shown, ", "))
	}

	for _, name := range result.Order {
		logger.Debugf("Package %s: %d file(s)", name, len(result.Paths(name)))
	}

	p.mu.Lock()
	p.classified = result
	p.mu.Unlock()

	return nil
}

func (p *Pipeline) writePackages(ctx context.Context) error {
	result := p.Classified()
	if result == nil {
		return errors.Errorf("module %s has not been classified", p.Module.Name)
	}

	logger := log.LoggerFromContext(ctx)

	for _, pkg := range p.ArtifactPackages() {
		paths := result.Paths(pkg.Name)
		if len(paths) == 0 {
			logger.Warnf("Package %s is empty", pkg.Name)
		}

		sources := []archive.Source{{Root: p.Module.OutputDir, Paths: paths}}

		if err := archive.WriteJar(pkg.Path, pkg.Manifest, sources, p.ModTime); err != nil {
			return errors.WithStackTraceAndPrefix(err, "package %s", pkg.Name)
		}

		logger.Debugf("Wrote %s", pkg.Path)
	}

	return nil
}

func (p *Pipeline) copyDependencies(ctx context.Context) error {
	sets := p.LibrarySets()
	if len(sets) == 0 {
		return nil
	}

	copied, err := CopyDependencies(ctx, sets, p.DependenciesDir(), p.Strict)
	if err != nil {
		return err
	}

	log.LoggerFromContext(ctx).Debugf("Gathered %d librar(ies)", len(copied))

	return nil
}

func (p *Pipeline) packageProperties() map[string]string {
	properties := make(map[string]string, len(p.Properties)+1)

	for key, value := range p.Properties {
		properties[key] = value
	}

	var rules strings.Builder

	for _, rule := range p.Rules {
		fmt.Fprintf(&rules, "%s|%v|%v|%d|%v;", rule.Package, rule.Include, rule.Exclude, rule.Priority, rule.AllowOverlap)
	}

	for _, pkg := range p.ArtifactPackages() {
		fmt.Fprintf(&rules, "%s=%s;", pkg.Name, pkg.Manifest.Bytes())
	}

	properties["rules"] = rules.String()

	return properties
}
