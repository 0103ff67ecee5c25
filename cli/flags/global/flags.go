// Package global provides the flags accepted by every distbuild command.
package global

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/distbuild/distbuild/cli/flags"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/urfave/cli/v2"
)

const (
	// Logs related flags.

	LogLevelFlagName  = "log-level"
	LogFormatFlagName = "log-format"
	NoColorFlagName   = "no-color"

	// Build definition flags.

	ConfigFlagName         = "config"
	WorkingDirFlagName     = "working-dir"
	ProductVersionFlagName = "product-version"
	EnvFlagName            = "env"

	// Execution flags.

	ParallelismFlagName        = "parallelism"
	NoCacheFlagName            = "no-cache"
	StrictDependenciesFlagName = "strict-dependencies"
	ReportFileFlagName         = "report-file"
	NoSummaryFlagName          = "no-summary"
)

// NewFlags returns the global flags. Values are stored into opts; Setup finishes applying them.
func NewFlags(opts *options.BuildOptions) []cli.Flag {
	prefix := flags.Prefix{flags.DistbuildPrefix}

	return []cli.Flag{
		&cli.StringFlag{
			Name:    LogLevelFlagName,
			EnvVars: prefix.EnvVars(LogLevelFlagName),
			Value:   opts.LogLevel.String(),
			Usage:   "Sets the logging level: " + log.AllLevels.String() + ".",
		},
		&cli.StringFlag{
			Name:        LogFormatFlagName,
			EnvVars:     prefix.EnvVars(LogFormatFlagName),
			Destination: &opts.LogFormat,
			Value:       opts.LogFormat,
			Usage:       "Sets the log format: " + strings.Join(log.AllFormats, ", ") + ".",
		},
		&cli.BoolFlag{
			Name:        NoColorFlagName,
			EnvVars:     prefix.EnvVars(NoColorFlagName),
			Destination: &opts.DisableColor,
			Usage:       "Disables color in logs and in the run summary.",
		},
		&cli.StringFlag{
			Name:        ConfigFlagName,
			Aliases:     []string{"c"},
			EnvVars:     prefix.EnvVars(ConfigFlagName),
			Destination: &opts.ConfigPath,
			Usage:       "The build definition. Defaults to " + options.DefaultConfigFile + " in the working directory.",
		},
		&cli.StringFlag{
			Name:        WorkingDirFlagName,
			EnvVars:     prefix.EnvVars(WorkingDirFlagName),
			Destination: &opts.WorkingDir,
			Usage:       "The directory to run distbuild in. Defaults to the current directory.",
		},
		&cli.StringFlag{
			Name:        ProductVersionFlagName,
			EnvVars:     prefix.EnvVars(ProductVersionFlagName),
			Destination: &opts.Version,
			Usage:       "Overrides the product version of the build definition.",
		},
		&cli.StringSliceFlag{
			Name:  EnvFlagName,
			Usage: "Sets a KEY=VALUE pair seen by the env() function of the build definition. May be repeated.",
		},
		&cli.IntFlag{
			Name:        ParallelismFlagName,
			Aliases:     []string{"j"},
			EnvVars:     prefix.EnvVars(ParallelismFlagName),
			Destination: &opts.Parallelism,
			Usage:       "The maximum number of tasks running at once. Defaults to build.parallelism.",
		},
		&cli.BoolFlag{
			Name:        NoCacheFlagName,
			EnvVars:     prefix.EnvVars(NoCacheFlagName),
			Destination: &opts.NoCache,
			Usage:       "Runs every task even when its outputs are up to date.",
		},
		&cli.BoolFlag{
			Name:        StrictDependenciesFlagName,
			EnvVars:     prefix.EnvVars(StrictDependenciesFlagName),
			Destination: &opts.StrictDependencies,
			Usage:       "Fails when two libraries with the same name but different content are gathered.",
		},
		&cli.StringFlag{
			Name:        ReportFileFlagName,
			EnvVars:     prefix.EnvVars(ReportFileFlagName),
			Destination: &opts.ReportFile,
			Usage:       "Writes a CSV report of every task run. A .json extension writes JSON instead.",
		},
		&cli.BoolFlag{
			Name:        NoSummaryFlagName,
			EnvVars:     prefix.EnvVars(NoSummaryFlagName),
			Destination: &opts.DisableSummary,
			Usage:       "Disables the run summary.",
		},
	}
}

// Setup applies the parsed global flags to opts: the logger, the working directory, the build definition
// path and the env() values.
func Setup(cliCtx *cli.Context, opts *options.BuildOptions) error {
	level, err := log.ParseLevel(cliCtx.String(LogLevelFlagName))
	if err != nil {
		return err
	}

	formatter, err := log.NewFormatter(opts.LogFormat, opts.DisableColor)
	if err != nil {
		return err
	}

	opts.LogLevel = level
	opts.Logger.SetOptions(log.WithLevel(level), log.WithFormatter(formatter))

	if opts.WorkingDir == "" {
		if opts.WorkingDir, err = os.Getwd(); err != nil {
			return errors.New(err)
		}
	}

	if opts.WorkingDir, err = filepath.Abs(opts.WorkingDir); err != nil {
		return errors.New(err)
	}

	if opts.ConfigPath == "" {
		opts.ConfigPath = options.DefaultConfigFile
	}

	if !filepath.IsAbs(opts.ConfigPath) {
		opts.ConfigPath = filepath.Join(opts.WorkingDir, opts.ConfigPath)
	}

	for _, pair := range cliCtx.StringSlice(EnvFlagName) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return errors.Errorf("invalid --%s value %q, expected KEY=VALUE", EnvFlagName, pair)
		}

		opts.Env[key] = value
	}

	return nil
}
