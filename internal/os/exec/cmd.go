// Package exec runs external build commands. A started command always runs to completion:
// cancelling the run context stops new tasks from being scheduled, never a command mid-action.
package exec

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/pkg/log"
)

// Cmd is a command type.
type Cmd struct {
	*exec.Cmd

	logger   log.Logger
	filename string
}

// Option configures a Cmd.
type Option func(*Cmd)

// WithDir sets the working directory of the command.
func WithDir(dir string) Option {
	return func(cmd *Cmd) {
		cmd.Dir = dir
	}
}

// WithEnv adds variables on top of the current process environment.
func WithEnv(env map[string]string) Option {
	return func(cmd *Cmd) {
		for key, value := range env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
	}
}

// WithOutput sets the writers the command's stdout and stderr go to.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(cmd *Cmd) {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}
}

// Command returns the `Cmd` struct to execute the named program with the given arguments.
// The process is started in its own process group, so a terminal interrupt is not delivered to it.
func Command(ctx context.Context, name string, args ...string) *Cmd {
	cmd := &Cmd{
		Cmd:      exec.Command(name, args...), //nolint:gosec,noctx
		logger:   log.LoggerFromContext(ctx),
		filename: filepath.Base(name),
	}

	cmd.Env = os.Environ()
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	detach(cmd.Cmd)

	return cmd
}

// Configure sets options to the `Cmd`.
func (cmd *Cmd) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(cmd)
	}
}

// Run starts the command and waits for it to exit. If ctx is cancelled meanwhile the command keeps
// running and Run still waits for it.
func (cmd *Cmd) Run(ctx context.Context) error {
	if err := cmd.Start(); err != nil {
		return errors.New(err)
	}

	exited := make(chan struct{})
	defer close(exited)

	go func() {
		select {
		case <-exited:
		case <-ctx.Done():
			cmd.logger.Infof("Run cancelled, waiting for %s (pid %d) to finish", cmd.filename, cmd.Process.Pid)
		}
	}()

	if err := cmd.Wait(); err != nil {
		return errors.New(err)
	}

	return nil
}
