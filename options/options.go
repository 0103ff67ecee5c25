// Package options provides the set of options that configure a distbuild run.
package options

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/hashicorp/go-version"
)

const ContextKey ctxKey = iota

const (
	// DefaultConfigFile is the build definition looked up in the working directory.
	DefaultConfigFile = "distbuild.hcl"

	defaultLogLevel = log.InfoLevel
)

type ctxKey byte

// BuildOptions represents options that configure the behavior of the distbuild program.
type BuildOptions struct {
	// Writer and ErrWriter receive command output and diagnostics.
	Writer    io.Writer
	ErrWriter io.Writer
	Logger    log.Logger
	// DistbuildVersion is the version of the running binary.
	DistbuildVersion *version.Version
	// Env backs the env() function of the build definition.
	Env map[string]string
	// ConfigPath is the build definition.
	ConfigPath string
	WorkingDir string
	// Version overrides the product version of the build definition.
	Version string
	// LogFormat is one of log.AllFormats.
	LogFormat string
	// SigningKey overrides distribution.signing_key.
	SigningKey        string
	SigningPassphrase string
	// ChecksumAlgorithm overrides distribution.checksum.
	ChecksumAlgorithm string
	// ReportFile receives a CSV report of every task run.
	ReportFile string
	// Formats override distribution.formats.
	Formats []string
	// Targets restrict the plan command to the closure of these tasks.
	Targets []string
	// Parallelism overrides build.parallelism when positive.
	Parallelism        int
	LogLevel           log.Level
	StrictDependencies bool
	SkipSigning        bool
	// NoCache runs every task even when its outputs are up to date.
	NoCache      bool
	DisableColor bool
	// DisableSummary suppresses the run summary.
	DisableSummary bool
}

// NewBuildOptions creates a new BuildOptions object with reasonable defaults for real usage.
func NewBuildOptions() *BuildOptions {
	return NewBuildOptionsWithWriters(os.Stdout, os.Stderr)
}

// NewBuildOptionsWithWriters creates BuildOptions writing to the given streams.
func NewBuildOptionsWithWriters(stdout, stderr io.Writer) *BuildOptions {
	return &BuildOptions{
		Writer:    stdout,
		ErrWriter: stderr,
		Logger:    log.New(log.WithOutput(stderr), log.WithLevel(defaultLogLevel)),
		LogLevel:  defaultLogLevel,
		LogFormat: log.PrettyFormatName,
		Env:       map[string]string{},
	}
}

// NewBuildOptionsWithConfigPath creates BuildOptions for the given build definition.
func NewBuildOptionsWithConfigPath(configPath string) (*BuildOptions, error) {
	opts := NewBuildOptions()

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, errors.New(err)
	}

	opts.ConfigPath = absPath
	opts.WorkingDir = filepath.Dir(absPath)

	return opts, nil
}

// NewBuildOptionsForTest creates BuildOptions with debug logging and discarded output.
func NewBuildOptionsForTest(configPath string) (*BuildOptions, error) {
	opts, err := NewBuildOptionsWithConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	opts.Writer = io.Discard
	opts.ErrWriter = io.Discard
	opts.LogLevel = log.DebugLevel
	opts.Logger = log.New(log.WithOutput(io.Discard), log.WithLevel(log.DebugLevel))
	opts.DisableColor = true

	return opts, nil
}

// OptionsFromContext tries to retrieve options from context, otherwise, returns its own instance.
func (opts *BuildOptions) OptionsFromContext(ctx context.Context) *BuildOptions {
	if val := ctx.Value(ContextKey); val != nil {
		if opts, ok := val.(*BuildOptions); ok {
			return opts
		}
	}

	return opts
}

// Clone creates a copy of the options. Lists and maps are copied so the clone can be modified independently.
func (opts *BuildOptions) Clone() *BuildOptions {
	clone := *opts

	clone.Logger = opts.Logger.Clone()
	clone.Formats = append([]string(nil), opts.Formats...)
	clone.Targets = append([]string(nil), opts.Targets...)
	clone.Env = make(map[string]string, len(opts.Env))

	for key, value := range opts.Env {
		clone.Env[key] = value
	}

	return &clone
}

// LookupEnv resolves an environment variable, preferring Env over the process environment.
func (opts *BuildOptions) LookupEnv(name string) (string, bool) {
	if value, ok := opts.Env[name]; ok {
		return value, true
	}

	return os.LookupEnv(name)
}
