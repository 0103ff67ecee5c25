package config

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/hashicorp/go-version"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// SourceDateEpochEnv fixes the build time for reproducible archives.
const SourceDateEpochEnv = "SOURCE_DATE_EPOCH"

// LoadOptions tune how the build definition is read.
type LoadOptions struct {
	// LookupEnv backs the env() function. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// DistbuildVersion is checked against distbuild_version_constraint when set.
	DistbuildVersion *version.Version
	// DiagnosticsWriter receives rendered HCL diagnostics.
	DiagnosticsWriter io.Writer
	Logger            log.Logger
	// Version overrides the product version.
	Version string
	// Now is used when neither build_time nor SOURCE_DATE_EPOCH is set.
	Now          func() time.Time
	DisableColor bool
}

type productFile struct {
	Product *ProductConfig `hcl:"product,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

type bodyFile struct {
	Build                      *BuildConfig        `hcl:"build,block"`
	Staging                    *StagingConfig      `hcl:"staging,block"`
	Distribution               *DistributionConfig `hcl:"distribution,block"`
	Stamp                      *StampConfig        `hcl:"stamp,block"`
	DistbuildVersionConstraint string              `hcl:"distbuild_version_constraint,optional"`
	Modules                    []*ModuleConfig     `hcl:"module,block"`
	Extensions                 []*ExtensionConfig  `hcl:"extension,block"`
	Resources                  []*ResourceConfig   `hcl:"resource,block"`
}

// Load reads and validates the build definition at path.
func Load(path string, opts LoadOptions) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err)
	}

	return Parse(content, path, opts)
}

// Parse reads and validates a build definition. The path names the file in diagnostics and anchors relative paths.
func Parse(content []byte, path string, opts LoadOptions) (cfg *Config, err error) {
	// The HCL decoder and cty conversions panic on some malformed input.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.New(PanicWhileParsingConfigError{RecoveredValue: recovered, ConfigFile: path})
		}
	}()

	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	parser := hclparse.NewParser()

	var (
		file  *hcl.File
		diags hcl.Diagnostics
	)

	switch filepath.Ext(path) {
	case ".json":
		file, diags = parser.ParseJSON(content, path)
	default:
		file, diags = parser.ParseHCL(content, path)
	}

	if diags.HasErrors() {
		return nil, handleDiagnostics(parser, diags, opts)
	}

	var product productFile
	if diags := gohcl.DecodeBody(file.Body, newEvalContext(opts.LookupEnv, nil), &product); diags.HasErrors() {
		return nil, handleDiagnostics(parser, diags, opts)
	}

	if product.Product == nil {
		return nil, errors.New(MissingProductError(path))
	}

	if opts.Version != "" {
		product.Product.Version = opts.Version
	}

	if _, err := version.NewVersion(product.Product.Version); err != nil {
		return nil, errors.New(InvalidVersionError{Version: product.Product.Version, Err: err})
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New(err)
	}

	variables := map[string]cty.Value{
		"product":    cty.StringVal(product.Product.Name),
		"version":    cty.StringVal(product.Product.Version),
		"config_dir": cty.StringVal(filepath.Dir(absPath)),
	}

	var body bodyFile
	if diags := gohcl.DecodeBody(product.Remain, newEvalContext(opts.LookupEnv, variables), &body); diags.HasErrors() {
		return nil, handleDiagnostics(parser, diags, opts)
	}

	cfg = &Config{
		Path:                       absPath,
		Dir:                        filepath.Dir(absPath),
		Product:                    *product.Product,
		DistbuildVersionConstraint: body.DistbuildVersionConstraint,
		Modules:                    body.Modules,
		Extensions:                 body.Extensions,
		Resources:                  body.Resources,
	}

	if body.Build != nil {
		cfg.Build = *body.Build
	}

	if body.Staging != nil {
		cfg.Staging = *body.Staging
	}

	if body.Distribution != nil {
		cfg.Distribution = *body.Distribution
	}

	if body.Stamp != nil {
		cfg.Stamp = *body.Stamp
	}

	if opts.DistbuildVersion != nil && cfg.DistbuildVersionConstraint != "" {
		if err := CheckDistbuildVersion(cfg.DistbuildVersionConstraint, opts.DistbuildVersion); err != nil {
			return nil, err
		}
	}

	if cfg.BuildTime, err = resolveBuildTime(cfg.Product.BuildTime, opts); err != nil {
		return nil, err
	}

	if err := mergo.Merge(cfg, defaults()); err != nil {
		return nil, errors.New(err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts.Logger.Debugf("Loaded %s: product %s %s, %d module(s), %d extension(s)",
		path, cfg.Product.Name, cfg.Product.Version, len(cfg.Modules), len(cfg.Extensions))

	return cfg, nil
}

// CheckDistbuildVersion returns an error when current does not satisfy the constraint.
func CheckDistbuildVersion(constraint string, current *version.Version) error {
	versionConstraint, err := version.NewConstraint(constraint)
	if err != nil {
		return errors.New(err)
	}

	if !versionConstraint.Check(current) {
		return errors.New(InvalidDistbuildVersion{CurrentVersion: current, VersionConstraints: versionConstraint})
	}

	return nil
}

func defaults() Config {
	return Config{
		Build: BuildConfig{
			Dir:         DefaultBuildDir,
			StateFile:   DefaultStateFile,
			Parallelism: runtime.NumCPU(),
		},
		Staging: StagingConfig{
			Dir: DefaultStagingDir,
		},
		Distribution: DistributionConfig{
			OutputDir: DefaultOutputDir,
			Formats:   []string{"tar.gz", "zip"},
			Checksum:  "sha256",
		},
	}
}

func resolveBuildTime(raw string, opts LoadOptions) (time.Time, error) {
	if raw != "" {
		buildTime, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, errors.Errorf("invalid build_time %q: %w", raw, err)
		}

		return buildTime.UTC(), nil
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if epoch, ok := lookup(SourceDateEpochEnv); ok && epoch != "" {
		seconds, err := strconv.ParseInt(epoch, 10, 64)
		if err != nil {
			return time.Time{}, errors.Errorf("invalid %s %q: %w", SourceDateEpochEnv, epoch, err)
		}

		return time.Unix(seconds, 0).UTC(), nil
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	return now().UTC().Truncate(time.Second), nil
}
