// Package clean provides the `clean` command, which removes everything the build wrote.
package clean

import (
	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "clean"
)

func NewCommand(opts *options.BuildOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Remove the build, staging and output directories.",
		Action: func(ctx *cli.Context) error {
			b, err := common.LoadBuild(opts)
			if err != nil {
				return err
			}

			if err := b.Clean(ctx.Context); err != nil {
				return err
			}

			opts.Logger.Infof("Removed the outputs of %s", b.Config.Product.Name)

			return nil
		},
	}
}
