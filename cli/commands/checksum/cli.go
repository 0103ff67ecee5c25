// Package checksum provides the `checksum` command, which writes or verifies checksum sidecars of archives.
package checksum

import (
	"fmt"
	"path/filepath"

	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/cli/flags"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "checksum"

	AlgorithmFlagName = "algorithm"
	VerifyFlagName    = "verify"
)

func NewCommand(opts *options.BuildOptions) *cli.Command {
	prefix := flags.Prefix{flags.DistbuildPrefix}

	return &cli.Command{
		Name:      CommandName,
		Usage:     "Write or verify checksum sidecars.",
		ArgsUsage: "[archive...]",
		Description: "Writes a `<digest>  <file>` sidecar next to every archive. Without arguments, every tar.gz " +
			"and zip archive in the output directory is processed.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        AlgorithmFlagName,
				EnvVars:     prefix.EnvVars("checksum-" + AlgorithmFlagName),
				Destination: &opts.ChecksumAlgorithm,
				Usage:       "The checksum algorithm: sha256, sha512, sha3-256 or blake2b-256.",
			},
			&cli.BoolFlag{
				Name:  VerifyFlagName,
				Usage: "Checks the existing sidecars instead of writing them.",
			},
		},
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

	archives := make([]string, 0, ctx.NArg())

	for _, arg := range ctx.Args().Slice() {
		if !filepath.IsAbs(arg) {
			arg = filepath.Join(opts.WorkingDir, arg)
		}

		archives = append(archives, arg)
	}

	if ctx.Bool(VerifyFlagName) {
		if err := b.VerifyArchives(ctx.Context, archives...); err != nil {
			return errors.ErrorWithExitCode{Err: err, ExitCode: common.ExitCodeFailure}
		}

		return nil
	}

	sidecars, err := b.ChecksumArchives(ctx.Context, archives...)
	if err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: common.ExitCodeFailure}
	}

	for _, sidecar := range sidecars {
		if _, err := fmt.Fprintln(opts.Writer, sidecar); err != nil {
			return errors.New(err)
		}
	}

	return nil
}
