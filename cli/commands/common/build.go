// Package common holds what the distbuild commands share: loading the build definition and running targets.
package common

import (
	"context"

	"github.com/distbuild/distbuild/config"
	"github.com/distbuild/distbuild/internal/build"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/options"
)

// LoadBuild reads the build definition named by opts and wires it into a task graph.
// Failures carry ExitCodeConfiguration.
func LoadBuild(opts *options.BuildOptions) (*build.Build, error) {
	cfg, err := config.Load(opts.ConfigPath, config.LoadOptions{
		LookupEnv:         opts.LookupEnv,
		DistbuildVersion:  opts.DistbuildVersion,
		DiagnosticsWriter: opts.ErrWriter,
		Logger:            opts.Logger,
		Version:           opts.Version,
		DisableColor:      opts.DisableColor,
	})
	if err != nil {
		return nil, configurationError(err)
	}

	b, err := build.New(cfg, opts)
	if err != nil {
		return nil, configurationError(err)
	}

	return b, nil
}

// Run executes the targets of the build. Planning failures carry ExitCodeConfiguration
// and task failures ExitCodeFailure.
func Run(ctx context.Context, b *build.Build, targets ...string) error {
	plan, err := b.Plan(targets...)
	if err != nil {
		return configurationError(err)
	}

	if err := b.Preflight(plan); err != nil {
		return configurationError(err)
	}

	if _, err := b.Execute(ctx, plan); err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: ExitCodeFailure}
	}

	return nil
}

// ModuleTargets maps module names to the task completing each module.
func ModuleTargets(b *build.Build, modules []string) ([]string, error) {
	targets := make([]string, 0, len(modules))

	for _, name := range modules {
		p := b.Pipeline(name)
		if p == nil {
			return nil, configurationError(errors.New(UnknownModuleError{Name: name, Modules: b.Config.ModuleNames()}))
		}

		targets = append(targets, p.LastTask())
	}

	return targets, nil
}

func configurationError(err error) error {
	return errors.ErrorWithExitCode{Err: err, ExitCode: ExitCodeConfiguration}
}
