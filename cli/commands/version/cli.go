// Package version represents the version CLI command that works the same as the `--version` flag.
package version

import (
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "version"
)

func NewCommand() *cli.Command {
	return &cli.Command{
		Name:   CommandName,
		Usage:  "Show distbuild version.",
		Hidden: true,
		Action: func(ctx *cli.Context) error {
			cli.ShowVersion(ctx)
			return nil
		},
	}
}
