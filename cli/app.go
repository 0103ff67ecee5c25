// Package cli assembles the distbuild command line application.
package cli

import (
	"github.com/distbuild/distbuild/cli/commands/build"
	"github.com/distbuild/distbuild/cli/commands/checksum"
	"github.com/distbuild/distbuild/cli/commands/clean"
	"github.com/distbuild/distbuild/cli/commands/dist"
	"github.com/distbuild/distbuild/cli/commands/info"
	"github.com/distbuild/distbuild/cli/commands/plan"
	"github.com/distbuild/distbuild/cli/commands/validate"
	versioncmd "github.com/distbuild/distbuild/cli/commands/version"
	"github.com/distbuild/distbuild/cli/flags/global"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/hashicorp/go-version"
	"github.com/urfave/cli/v2"
)

const AppName = "distbuild"

// Version is set at link time.
var Version = "0.1.0"

// NewApp creates the distbuild CLI app.
func NewApp(opts *options.BuildOptions) *cli.App {
	return &cli.App{
		Name:                  AppName,
		Usage:                 "builds multi-module products into reproducible, validated distribution archives",
		UsageText:             "distbuild [global options] <command> [arguments]",
		Version:               Version,
		Writer:                opts.Writer,
		ErrWriter:             opts.ErrWriter,
		Flags:                 global.NewFlags(opts),
		Commands:              NewCommands(opts),
		CustomAppHelpTemplate: AppHelpTemplate,
		EnableBashCompletion:  true,
		Before: func(ctx *cli.Context) error {
			return initialSetup(ctx, opts)
		},
		// Errors are returned to main, which picks the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// NewCommands returns the commands of the app.
func NewCommands(opts *options.BuildOptions) []*cli.Command {
	return []*cli.Command{
		build.NewCommand(opts),
		dist.NewCommand(opts),
		dist.NewDevCommand(opts),
		validate.NewCommand(opts),
		clean.NewCommand(opts),
		checksum.NewCommand(opts),
		plan.NewCommand(opts),
		info.NewCommand(opts),
		versioncmd.NewCommand(),
	}
}

func initialSetup(ctx *cli.Context, opts *options.BuildOptions) error {
	if err := global.Setup(ctx, opts); err != nil {
		return err
	}

	if opts.DistbuildVersion == nil {
		current, err := version.NewVersion(ctx.App.Version)
		if err != nil {
			// Malformed distbuild version; set the version to 0.0
			if current, err = version.NewVersion("0.0"); err != nil {
				return errors.New(err)
			}
		}

		opts.DistbuildVersion = current
	}

	opts.Logger.Debugf("distbuild version: %s", opts.DistbuildVersion)

	ctx.Context = log.ContextWithLogger(ctx.Context, opts.Logger)

	return nil
}
