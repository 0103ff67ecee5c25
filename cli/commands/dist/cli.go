// Package dist provides the `dist` and `dist-dev` commands, which build the modules, stage them and write the
// distribution archives with their checksums.
package dist

import (
	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/cli/flags"
	"github.com/distbuild/distbuild/internal/build"
	"github.com/distbuild/distbuild/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName    = "dist"
	DevCommandName = "dist-dev"

	FormatFlagName            = "format"
	SigningKeyFlagName        = "signing-key"
	SigningPassphraseFlagName = "signing-passphrase"
	SkipSigningFlagName       = "skip-signing"
	ChecksumFlagName          = "checksum-algorithm"
)

func NewFlags(opts *options.BuildOptions, signing bool) []cli.Flag {
	prefix := flags.Prefix{flags.DistbuildPrefix}

	distFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    FormatFlagName,
			EnvVars: prefix.EnvVars(FormatFlagName),
			Usage:   "The archive formats to write, tar.gz or zip. Overrides distribution.formats. May be repeated.",
		},
		&cli.StringFlag{
			Name:        ChecksumFlagName,
			EnvVars:     prefix.EnvVars(ChecksumFlagName),
			Destination: &opts.ChecksumAlgorithm,
			Usage:       "The checksum algorithm. Overrides distribution.checksum.",
		},
	}

	if !signing {
		return distFlags
	}

	return append(distFlags,
		&cli.StringFlag{
			Name:        SigningKeyFlagName,
			EnvVars:     prefix.EnvVars(SigningKeyFlagName),
			Destination: &opts.SigningKey,
			Usage:       "The armored OpenPGP private key signing the archives. Overrides distribution.signing_key.",
		},
		&cli.StringFlag{
			Name:        SigningPassphraseFlagName,
			EnvVars:     prefix.EnvVars(SigningPassphraseFlagName),
			Destination: &opts.SigningPassphrase,
			Usage:       "The passphrase of the signing key.",
		},
		&cli.BoolFlag{
			Name:        SkipSigningFlagName,
			EnvVars:     prefix.EnvVars(SkipSigningFlagName),
			Destination: &opts.SkipSigning,
			Usage:       "Writes the archives without signatures.",
		},
	)
}

func NewCommand(opts *options.BuildOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Build, stage, validate, package, sign and checksum the distribution.",
		Description: "Builds every module, assembles the staging tree, checks it against the required entries and " +
			"writes one archive per format, with a checksum sidecar and, when a signing key is set, a signature.",
		Flags: NewFlags(opts, true),
		Action: func(ctx *cli.Context) error {
			return Run(ctx, opts)
		},
	}
}

// NewDevCommand is dist without signing.
func NewDevCommand(opts *options.BuildOptions) *cli.Command {
	return &cli.Command{
		Name:  DevCommandName,
		Usage: "Like dist, without signing the archives.",
		Flags: NewFlags(opts, false),
		Action: func(ctx *cli.Context) error {
			opts.SkipSigning = true

			return Run(ctx, opts)
		},
	}
}

func Run(ctx *cli.Context, opts *options.BuildOptions) error {
	if formats := ctx.StringSlice(FormatFlagName); len(formats) > 0 {
		opts.Formats = formats
	}

	b, err := common.LoadBuild(opts)
	if err != nil {
		return err
	}

	if b.SigningKey == "" && !opts.SkipSigning {
		opts.Logger.Warnf("No signing key is configured, the archives will not be signed")
	}

	return common.Run(ctx.Context, b, build.TaskDist)
}
