// Package validate provides the `validate` command, which checks the build definition, the task graph and the
// existing staging tree without running any task.
package validate

import (
	"fmt"

	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/internal/build"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "validate"

	DefinitionOnlyFlagName = "definition-only"
)

func NewCommand(opts *options.BuildOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Validate the build definition and the staged tree.",
		Description: "Loads the build definition, plans the dist target, classifies already compiled modules and " +
			"checks that the staged tree holds every required entry. Nothing is built.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  DefinitionOnlyFlagName,
				Usage: "Skips the check of the staged tree.",
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

	plan, err := b.Plan(build.TaskDist)
	if err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: common.ExitCodeConfiguration}
	}

	if err := b.Preflight(plan); err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: common.ExitCodeConfiguration}
	}

	opts.Logger.Debugf("Build definition %s is valid: %d task(s)", opts.ConfigPath, len(plan.Tasks))

	if ctx.Bool(DefinitionOnlyFlagName) {
		return nil
	}

	if err := b.ValidateStaged(); err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: common.ExitCodeFailure}
	}

	_, err = fmt.Fprintf(opts.Writer, "Staged tree %s is valid\n", b.Config.Staging.Dir)

	return err
}
