package main

import (
	"context"
	"fmt"
	"os"

	"github.com/distbuild/distbuild/cli"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/os/signal"
	"github.com/distbuild/distbuild/options"
	"github.com/distbuild/distbuild/pkg/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// The main entrypoint for distbuild
func main() {
	opts := options.NewBuildOptions()

	defer errors.Recover(checkForErrorsAndExit(opts))

	app := cli.NewApp(opts)

	ctx, stop := signal.NotifyContext(context.Background(), func(sig os.Signal) {
		opts.Logger.Warnf("%s signal received, waiting for running tasks to finish", cases.Title(language.English).String(sig.String()))
	}, signal.InterruptSignals...)

	ctx = log.ContextWithLogger(ctx, opts.Logger)
	err := app.RunContext(ctx, os.Args)

	stop()

	checkForErrorsAndExit(opts)(err)
}

// If there is an error, display it in the console and exit with a non-zero exit code. Otherwise, exit 0.
func checkForErrorsAndExit(opts *options.BuildOptions) func(error) {
	return func(err error) {
		if err == nil {
			os.Exit(0)
		}

		fmt.Fprintln(opts.ErrWriter, err.Error())

		if errStack := errors.ErrorStack(err); errStack != "" {
			opts.Logger.Trace(errStack)
		}

		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var withCode errors.ErrorWithExitCode
	if errors.As(err, &withCode) && withCode.ExitCode != 0 {
		return withCode.ExitCode
	}

	return 1
}
