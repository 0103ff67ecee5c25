// Package plan provides the `plan` command, which prints the tasks a run would execute without executing them.
package plan

import (
	"fmt"
	"io"

	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/internal/build"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/taskgraph"
	"github.com/distbuild/distbuild/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "plan"
)

func NewCommand(opts *options.BuildOptions) *cli.Command {
	return &cli.Command{
		Name:      CommandName,
		Usage:     "Print the task plan grouped by depth.",
		ArgsUsage: "[task...]",
		Description: "Prints the tasks required by the given targets, default dist, in topological order. " +
			"Tasks on the same level do not depend on each other and may run concurrently.",
		Action: func(ctx *cli.Context) error {
			opts.Targets = ctx.Args().Slice()

			return Run(opts)
		},
	}
}

func Run(opts *options.BuildOptions) error {
	b, err := common.LoadBuild(opts)
	if err != nil {
		return err
	}

	targets := opts.Targets
	if len(targets) == 0 {
		targets = []string{build.TaskDist}
	}

	plan, err := b.Plan(targets...)
	if err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: common.ExitCodeConfiguration}
	}

	return Write(opts.Writer, b, plan)
}

// Write prints one block per level, each task with its description.
func Write(w io.Writer, b *build.Build, plan *taskgraph.Plan) error {
	for depth, level := range plan.Levels() {
		if _, err := fmt.Fprintf(w, "Level %d:\n", depth); err != nil {
			return errors.New(err)
		}

		for _, name := range level {
			description := ""
			if task, ok := b.Graph.Task(name); ok {
				description = task.Description
			}

			if _, err := fmt.Fprintf(w, "  %-28s %s\n", name, description); err != nil {
				return errors.New(err)
			}
		}
	}

	return nil
}
