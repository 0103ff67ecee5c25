// Package info provides the `info` command, which prints the product, its modules and the available tasks.
package info

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/internal/build"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "info"
)

func NewCommand(opts *options.BuildOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Print the product, its modules and the available tasks.",
		Action: func(_ *cli.Context) error {
			b, err := common.LoadBuild(opts)
			if err != nil {
				return err
			}

			return Write(opts.Writer, b)
		},
	}
}

// Write prints the build information.
func Write(w io.Writer, b *build.Build) error {
	var sb strings.Builder

	cfg := b.Config

	fmt.Fprintf(&sb, "Product:     %s\n", cfg.Product.Name)
	fmt.Fprintf(&sb, "Version:     %s\n", cfg.Product.Version)
	fmt.Fprintf(&sb, "Build time:  %s\n", cfg.BuildTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Definition:  %s\n", cfg.Path)
	fmt.Fprintf(&sb, "Staging dir: %s\n", cfg.Staging.Dir)
	fmt.Fprintf(&sb, "Output dir:  %s\n", cfg.Distribution.OutputDir)

	sb.WriteString("\nModules:\n")

	for _, p := range b.Pipelines {
		requires := "-"
		if len(p.Module.Requires) > 0 {
			requires = strings.Join(p.Module.Requires, ", ")
		}

		upstream, err := b.Registry.Upstream(p.Name())
		if err != nil {
			return err
		}

		transitive := "-"
		if len(upstream) > 0 {
			transitive = strings.Join(upstream, ", ")
		}

		packages := make([]string, 0, len(p.Rules))
		for _, pkg := range p.ArtifactPackages() {
			packages = append(packages, pkg.Name)
		}

		fmt.Fprintf(&sb, "  %-20s requires: %s\n", p.Name(), requires)
		fmt.Fprintf(&sb, "  %-20s upstream: %s\n", "", transitive)
		fmt.Fprintf(&sb, "  %-20s packages: %s\n", "", strings.Join(packages, ", "))
	}

	if len(cfg.Extensions) > 0 {
		sb.WriteString("\nExtensions:\n")

		for _, extension := range cfg.Extensions {
			fmt.Fprintf(&sb, "  %-20s %s of module %s\n", extension.Name, extension.Kind, extension.Module)
		}
	}

	sb.WriteString("\nTasks:\n")

	for _, task := range b.Graph.Tasks() {
		if task.Group != "" {
			continue
		}

		fmt.Fprintf(&sb, "  %-20s %s\n", task.Name, task.Description)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.New(err)
	}

	return nil
}
