// Package config reads the build definition, distbuild.hcl, into a typed model.
package config

import (
	"fmt"
	"time"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/google/shlex"
)

const (
	// DefaultConfigFile is looked up in the working directory.
	DefaultConfigFile = "distbuild.hcl"

	DefaultBuildDir   = "build"
	DefaultStagingDir = "build/setup"
	DefaultOutputDir  = "build/dist"
	DefaultStateFile  = "build/.distbuild-state.json"
)

// Config is a loaded build definition. Relative paths are resolved against the directory of the file.
type Config struct {
	BuildTime                  time.Time
	Product                    ProductConfig
	Stamp                      StampConfig
	Path                       string
	Dir                        string
	DistbuildVersionConstraint string
	Modules                    []*ModuleConfig
	Extensions                 []*ExtensionConfig
	Resources                  []*ResourceConfig
	Staging                    StagingConfig
	Distribution               DistributionConfig
	Build                      BuildConfig
}

// ProductConfig names the product and its version.
type ProductConfig struct {
	Name      string `hcl:"name,label"`
	Version   string `hcl:"version,attr"`
	BuildTime string `hcl:"build_time,optional"`
}

// BuildConfig holds the build-wide settings.
type BuildConfig struct {
	Dir                string `hcl:"dir,optional"`
	StateFile          string `hcl:"state_file,optional"`
	Parallelism        int    `hcl:"parallelism,optional"`
	StrictDependencies bool   `hcl:"strict_dependencies,optional"`
}

// ModuleConfig is a source module with its packages.
type ModuleConfig struct {
	Compile   *CompileConfig `hcl:"compile,block"`
	Name      string         `hcl:"name,label"`
	Source    string         `hcl:"source,attr"`
	Output    string         `hcl:"output,optional"`
	Prebuilt  string         `hcl:"prebuilt,optional"`
	Requires  []string       `hcl:"requires,optional"`
	Libraries []string       `hcl:"libraries,optional"`
	// LibrariesStage is the staging directory of the gathered libraries, e.g. "server-lib".
	LibrariesStage string           `hcl:"libraries_stage,optional"`
	Packages       []*PackageConfig `hcl:"package,block"`
}

// CompileConfig runs an external compiler. The command is given either as a list or as one
// shell-quoted command_line.
type CompileConfig struct {
	Env         map[string]string `hcl:"env,optional"`
	CommandLine string            `hcl:"command_line,optional"`
	Command     []string          `hcl:"command,optional"`
}

// Args returns the compile command split into arguments.
func (compile *CompileConfig) Args() ([]string, error) {
	switch {
	case len(compile.Command) > 0 && compile.CommandLine != "":
		return nil, errors.New(InvalidCompileCommandError("command and command_line are mutually exclusive"))
	case len(compile.Command) > 0:
		return compile.Command, nil
	case compile.CommandLine == "":
		return nil, errors.New(InvalidCompileCommandError("command or command_line is required"))
	}

	args, err := shlex.Split(compile.CommandLine)
	if err != nil {
		return nil, errors.New(InvalidCompileCommandError(fmt.Sprintf("command_line %q: %v", compile.CommandLine, err)))
	}

	if len(args) == 0 {
		return nil, errors.New(InvalidCompileCommandError("command_line is empty"))
	}

	return args, nil
}

// PackageConfig is one classification rule of a module. Several blocks may name the same package.
type PackageConfig struct {
	Name         string   `hcl:"name,label"`
	FileName     string   `hcl:"file_name,optional"`
	MainClass    string   `hcl:"main_class,optional"`
	Stage        string   `hcl:"stage,optional"`
	Include      []string `hcl:"include,optional"`
	Exclude      []string `hcl:"exclude,optional"`
	ClassPath    []string `hcl:"class_path,optional"`
	Priority     int      `hcl:"priority,optional"`
	AllowOverlap bool     `hcl:"allow_overlap,optional"`
}

// Extension kinds.
const (
	ExtensionConnector = "connector"
	ExtensionDatatype  = "datatype"
	ExtensionPlugin    = "plugin"
)

// Extension sides.
const (
	SideServer = "server"
	SideClient = "client"
)

// ExtensionConfig describes an extension built from a module's compiled units. It expands into a shared package
// and a server or client package, staged under extensions/<name>/.
type ExtensionConfig struct {
	Name       string   `hcl:"name,label"`
	Module     string   `hcl:"module,attr"`
	Kind       string   `hcl:"kind,optional"`
	Side       string   `hcl:"side,optional"`
	Descriptor string   `hcl:"descriptor,optional"`
	Shared     []string `hcl:"shared,optional"`
	Server     []string `hcl:"server,optional"`
	Client     []string `hcl:"client,optional"`
	Lib        []string `hcl:"lib,optional"`
}

// SidePatterns returns the include globs of the server or client package.
func (extension *ExtensionConfig) SidePatterns() []string {
	if extension.Side == SideClient {
		return extension.Client
	}

	return extension.Server
}

// ResourceConfig copies a file or directory into the staging tree.
type ResourceConfig struct {
	Name    string   `hcl:"name,label"`
	Role    string   `hcl:"role,attr"`
	Source  string   `hcl:"source,attr"`
	Dest    string   `hcl:"dest,optional"`
	Include []string `hcl:"include,optional"`
	Exclude []string `hcl:"exclude,optional"`
}

// StagingConfig configures the staging tree.
type StagingConfig struct {
	Duplicates map[string]string  `hcl:"duplicates,optional"`
	Dir        string             `hcl:"dir,optional"`
	Exceptions []*ExceptionConfig `hcl:"exception,block"`
}

// ExceptionConfig overrides the duplicate policy for matching staged paths.
type ExceptionConfig struct {
	Pattern string `hcl:"pattern,attr"`
	Policy  string `hcl:"policy,attr"`
}

// DistributionConfig configures the archives.
type DistributionConfig struct {
	OutputDir     string   `hcl:"output_dir,optional"`
	Classifier    string   `hcl:"classifier,optional"`
	Checksum      string   `hcl:"checksum,optional"`
	SigningKey    string   `hcl:"signing_key,optional"`
	Formats       []string `hcl:"formats,optional"`
	Launchers     []string `hcl:"launchers,optional"`
	RequiredFiles []string `hcl:"required_files,optional"`
	RequiredDirs  []string `hcl:"required_dirs,optional"`
	ExtensionZips *bool    `hcl:"extension_zips,optional"`
}

// StampConfig configures version token substitution.
type StampConfig struct {
	Token      string   `hcl:"token,optional"`
	Extensions []string `hcl:"extensions,optional"`
	Exclude    []string `hcl:"exclude,optional"`
}

// Module returns the named module.
func (cfg *Config) Module(name string) *ModuleConfig {
	for _, module := range cfg.Modules {
		if module.Name == name {
			return module
		}
	}

	return nil
}

// ModuleNames returns the module names in declaration order.
func (cfg *Config) ModuleNames() []string {
	names := make([]string, 0, len(cfg.Modules))
	for _, module := range cfg.Modules {
		names = append(names, module.Name)
	}

	return names
}

// ExtensionZipsEnabled reports whether dist writes per-extension zips.
func (cfg *Config) ExtensionZipsEnabled() bool {
	return cfg.Distribution.ExtensionZips == nil || *cfg.Distribution.ExtensionZips
}
