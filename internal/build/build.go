// Package build turns a build definition into a task graph: one pipeline per module, followed by
// staging, validation, packaging, signing and checksumming of the distribution.
package build

import (
	"path/filepath"
	"slices"

	"github.com/distbuild/distbuild/config"
	"github.com/distbuild/distbuild/internal/archive"
	"github.com/distbuild/distbuild/internal/classify"
	"github.com/distbuild/distbuild/internal/dist"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/pipeline"
	"github.com/distbuild/distbuild/internal/registry"
	"github.com/distbuild/distbuild/internal/staging"
	"github.com/distbuild/distbuild/internal/stamp"
	"github.com/distbuild/distbuild/internal/taskgraph"
	"github.com/distbuild/distbuild/options"
	"github.com/distbuild/distbuild/util"
)

// Names of the build-wide tasks.
const (
	TaskModules       = "modules"
	TaskStage         = "stage"
	TaskValidate      = "validate"
	TaskExtensionZips = "extension-zips"
	TaskSign          = "sign"
	TaskChecksum      = "checksum"
	TaskDist          = "dist"

	archiveTaskPrefix = "archive-"
	extensionsDir     = "extensions"
)

// ArchiveTask is the name of the task writing the archive of the given format.
func ArchiveTask(format dist.Format) string {
	return archiveTaskPrefix + string(format)
}

// Build is a build definition wired into a task graph.
type Build struct {
	Config    *config.Config
	Options   *options.BuildOptions
	Registry  *registry.Registry
	Graph     *taskgraph.Graph
	Tracker   *pipeline.Tracker
	Packager  *dist.Packager
	Pipelines []*pipeline.Pipeline
	Formats   []dist.Format
	Checksum  stamp.Algorithm
	// SigningKey is empty when the distribution is not signed.
	SigningKey  string
	Parallelism int
}

// New wires the build definition into a task graph. Options override the matching settings of the definition.
func New(cfg *config.Config, opts *options.BuildOptions) (*Build, error) {
	b := &Build{
		Config:      cfg,
		Options:     opts,
		Registry:    registry.New(),
		Graph:       taskgraph.NewGraph(),
		Parallelism: cfg.Build.Parallelism,
		SigningKey:  cfg.Distribution.SigningKey,
	}

	if opts.Parallelism > 0 {
		b.Parallelism = opts.Parallelism
	}

	if opts.SigningKey != "" {
		b.SigningKey = opts.SigningKey
	}

	if opts.SkipSigning {
		b.SigningKey = ""
	}

	if err := b.resolveDistribution(); err != nil {
		return nil, err
	}

	if err := b.registerModules(); err != nil {
		return nil, err
	}

	if err := b.registerDistribution(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Build) resolveDistribution() error {
	formats := b.Config.Distribution.Formats
	if len(b.Options.Formats) > 0 {
		formats = b.Options.Formats
	}

	for _, name := range formats {
		format, err := dist.ParseFormat(name)
		if err != nil {
			return err
		}

		if !slices.Contains(b.Formats, format) {
			b.Formats = append(b.Formats, format)
		}
	}

	checksum := b.Config.Distribution.Checksum
	if b.Options.ChecksumAlgorithm != "" {
		checksum = b.Options.ChecksumAlgorithm
	}

	algorithm, err := stamp.ParseAlgorithm(checksum)
	if err != nil {
		return err
	}

	b.Checksum = algorithm

	b.Packager = &dist.Packager{
		ModTime:    b.Config.BuildTime,
		Product:    b.Config.Product.Name,
		Version:    b.Config.Product.Version,
		OutputDir:  b.Config.Distribution.OutputDir,
		Classifier: b.Config.Distribution.Classifier,
		Launchers:  b.Config.Distribution.Launchers,
		Requirements: dist.Requirements{
			Files: b.Config.Distribution.RequiredFiles,
			// Every layout directory is created by staging, so a missing one means the tree is not a staged tree.
			Dirs: util.RemoveDuplicatesFromList(append(b.Tree().Dirs(), b.Config.Distribution.RequiredDirs...)),
		},
	}

	return nil
}

// Tree is the staging tree of the build.
func (b *Build) Tree() staging.Tree {
	return staging.Tree{Root: b.Config.Staging.Dir}
}

// Pipeline returns the pipeline of the named module.
func (b *Build) Pipeline(module string) *pipeline.Pipeline {
	for _, p := range b.Pipelines {
		if p.Name() == module {
			return p
		}
	}

	return nil
}

func (b *Build) registerModules() error {
	for _, module := range b.Config.Modules {
		if err := b.Registry.Add(&registry.Module{
			Name:       module.Name,
			SourceRoot: module.Source,
			OutputDir:  module.Output,
			Requires:   module.Requires,
		}); err != nil {
			return err
		}
	}

	modules, err := b.Registry.Sorted()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(modules))

	for _, module := range modules {
		p, err := b.newPipeline(module)
		if err != nil {
			return err
		}

		if err := p.Register(b.Graph); err != nil {
			return err
		}

		b.Pipelines = append(b.Pipelines, p)
		names = append(names, module.Name)
	}

	b.Tracker = pipeline.NewTracker(names...)

	lastTasks := make([]string, 0, len(b.Pipelines))
	for _, p := range b.Pipelines {
		lastTasks = append(lastTasks, p.LastTask())
	}

	return b.Graph.Register(&taskgraph.Task{
		Name:        TaskModules,
		Description: "Builds every module",
		DependsOn:   lastTasks,
	})
}

func (b *Build) newPipeline(module *registry.Module) (*pipeline.Pipeline, error) {
	cfg := b.Config.Module(module.Name)

	p := &pipeline.Pipeline{
		ModTime:   b.Config.BuildTime,
		Module:    module,
		BuildDir:  b.Config.ModuleBuildDir(module.Name),
		Libraries: cfg.Libraries,
		Strict:    b.Config.Build.StrictDependencies || b.Options.StrictDependencies,
	}

	if cfg.Compile != nil {
		args, err := cfg.Compile.Args()
		if err != nil {
			return nil, err
		}

		p.Compiler = &pipeline.CommandCompiler{Command: args, Env: cfg.Compile.Env}
	} else {
		p.Compiler = &pipeline.PrebuiltCompiler{Dir: cfg.Prebuilt}
	}

	for _, pkg := range cfg.Packages {
		p.Rules = append(p.Rules, classify.Rule{
			Module:       module.Name,
			Package:      pkg.Name,
			Include:      pkg.Include,
			Exclude:      pkg.Exclude,
			Priority:     pkg.Priority,
			AllowOverlap: pkg.AllowOverlap,
		})

		if slices.ContainsFunc(p.Packages, func(spec pipeline.PackageSpec) bool { return spec.Name == pkg.Name }) {
			continue
		}

		p.Packages = append(p.Packages, pipeline.PackageSpec{
			Name:     pkg.Name,
			FileName: pkg.FileName,
			Manifest: archive.Manifest{MainClass: pkg.MainClass, ClassPath: pkg.ClassPath},
		})
	}

	for _, extension := range b.Config.Extensions {
		if extension.Module != module.Name {
			continue
		}

		p.Rules = append(p.Rules, extensionRules(module.Name, extension)...)
	}

	for _, required := range module.Requires {
		upstream := b.Pipeline(required)
		if upstream == nil {
			return nil, errors.New(registry.UnknownModuleError{Name: required, RequiredBy: module.Name})
		}

		p.Upstream = append(p.Upstream, upstream)
	}

	return p, nil
}

// extensionRules expands an extension into its shared package and its server or client package.
// The side package leaves the shared units to the shared package.
func extensionRules(module string, extension *config.ExtensionConfig) []classify.Rule {
	var rules []classify.Rule

	if len(extension.Shared) > 0 {
		rules = append(rules, classify.Rule{
			Module:  module,
			Package: extensionPackage(extension, "shared"),
			Include: extension.Shared,
		})
	}

	if side := extension.SidePatterns(); len(side) > 0 {
		rules = append(rules, classify.Rule{
			Module:  module,
			Package: extensionPackage(extension, extensionSide(extension)),
			Include: side,
			Exclude: extension.Shared,
		})
	}

	return rules
}

func extensionSide(extension *config.ExtensionConfig) string {
	if extension.Side == "" {
		return config.SideServer
	}

	return extension.Side
}

func extensionPackage(extension *config.ExtensionConfig, suffix string) string {
	return extension.Name + "-" + suffix
}

// stagingInputs returns the packages and resources assembled into the staging tree.
func (b *Build) stagingInputs() ([]staging.Package, []staging.Resource, error) {
	var (
		packages  []staging.Package
		resources []staging.Resource
	)

	extensionPackages := make(map[string]*config.ExtensionConfig)

	for _, extension := range b.Config.Extensions {
		for _, suffix := range []string{"shared", extensionSide(extension)} {
			extensionPackages[extensionPackage(extension, suffix)] = extension
		}
	}

	for _, p := range b.Pipelines {
		cfg := b.Config.Module(p.Name())
		stages := make(map[string]string, len(cfg.Packages))

		for _, pkg := range cfg.Packages {
			if pkg.Stage != "" {
				stages[pkg.Name] = pkg.Stage
			}
		}

		for _, pkg := range p.ArtifactPackages() {
			if extension, ok := extensionPackages[pkg.Name]; ok && extension.Module == p.Name() {
				packages = append(packages, staging.Package{
					Role:   staging.RoleExtensions,
					Source: pkg.Path,
					Dest:   filepath.ToSlash(filepath.Join(extensionsDir, extension.Name)),
				})

				continue
			}

			if stage, ok := stages[pkg.Name]; ok {
				packages = append(packages, staging.Package{Role: staging.RoleLibraries, Source: pkg.Path, Dest: stage})
			}
		}

		if len(cfg.Libraries) > 0 && cfg.LibrariesStage != "" {
			resources = append(resources, staging.Resource{
				Role:   staging.RoleLibraries,
				Source: p.DependenciesDir(),
				Dest:   cfg.LibrariesStage,
			})
		}
	}

	for _, extension := range b.Config.Extensions {
		dest := filepath.ToSlash(filepath.Join(extensionsDir, extension.Name))

		if extension.Descriptor != "" {
			packages = append(packages, staging.Package{Role: staging.RoleExtensions, Source: extension.Descriptor, Dest: dest})
		}

		libs, err := util.GlobFiles(b.Config.Dir, extension.Lib...)
		if err != nil {
			return nil, nil, err
		}

		for _, lib := range libs {
			packages = append(packages, staging.Package{Role: staging.RoleExtensions, Source: lib, Dest: dest + "/lib"})
		}
	}

	for _, resource := range b.Config.Resources {
		role, err := staging.ParseRole(resource.Role)
		if err != nil {
			return nil, nil, err
		}

		resources = append(resources, staging.Resource{
			Role:    role,
			Source:  resource.Source,
			Dest:    resource.Dest,
			Include: resource.Include,
			Exclude: resource.Exclude,
		})
	}

	return packages, resources, nil
}

// assembler returns the staging assembler configured by the build definition.
func (b *Build) assembler() (*staging.Assembler, error) {
	policies := staging.DefaultPolicies()

	for name, value := range b.Config.Staging.Duplicates {
		role, err := staging.ParseRole(name)
		if err != nil {
			return nil, err
		}

		policy, err := staging.ParsePolicy(value)
		if err != nil {
			return nil, err
		}

		policies[role] = policy
	}

	exceptions := make([]staging.PolicyException, 0, len(b.Config.Staging.Exceptions))

	for _, exception := range b.Config.Staging.Exceptions {
		policy, err := staging.ParsePolicy(exception.Policy)
		if err != nil {
			return nil, err
		}

		exceptions = append(exceptions, staging.PolicyException{Pattern: exception.Pattern, Policy: policy})
	}

	return &staging.Assembler{
		Policies:   policies,
		Exceptions: exceptions,
		Version: &staging.VersionInfo{
			BuildTime: b.Config.BuildTime,
			Product:   b.Config.Product.Name,
			Version:   b.Config.Product.Version,
		},
		Stamp: &staging.StampOptions{
			Token:   b.Config.Stamp.Token,
			Version: b.Config.Product.Version,
			Filter:  stamp.Filter{Extensions: b.Config.Stamp.Extensions, Exclude: b.Config.Stamp.Exclude},
		},
	}, nil
}
