// Package build provides the `build` command, which runs the pipelines of every module, or of the named
// modules and their upstream modules.
package build

import (
	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/internal/build"
	"github.com/distbuild/distbuild/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "build"
)

func NewCommand(opts *options.BuildOptions) *cli.Command {
	return &cli.Command{
		Name:      CommandName,
		Usage:     "Compile, classify and package modules.",
		ArgsUsage: "[module...]",
		Description: "Runs the pipeline of every module in dependency order: compile, classify, package and gather " +
			"libraries. Naming modules restricts the run to them and their upstream modules.",
		Action: func(ctx *cli.Context) error {
			return Run(ctx, opts)
		},
	}
}

func Run(ctx *cli.Context, opts *options.BuildOptions) error {
	b, err := common.LoadBuild(opts)
	if err != nil {
		return err
	}

	targets := []string{build.TaskModules}

	if ctx.Args().Present() {
		if targets, err = common.ModuleTargets(b, ctx.Args().Slice()); err != nil {
			return err
		}
	}

	return common.Run(ctx.Context, b, targets...)
}
