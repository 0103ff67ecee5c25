package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/os/exec"
	"github.com/distbuild/distbuild/internal/registry"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/distbuild/distbuild/util"
)

// Compiler turns a module's source root into its compiled-unit directory.
type Compiler interface {
	// Compile writes compiled units into module.OutputDir. Classpath lists the upstream compiled
	// directories and library files.
	Compile(ctx context.Context, module *registry.Module, classpath []string) error
	// Fingerprint identifies the compiler configuration for up-to-date checks.
	Fingerprint() string
}

// CommandCompiler runs an external command. Arguments may reference {module}, {source}, {output} and {classpath}.
type CommandCompiler struct {
	Env     map[string]string
	Command []string
}

// Compile implements Compiler.
func (compiler *CommandCompiler) Compile(ctx context.Context, module *registry.Module, classpath []string) error {
	if len(compiler.Command) == 0 {
		return errors.Errorf("module %s: empty compile command", module.Name)
	}

	if err := os.MkdirAll(module.OutputDir, os.ModePerm); err != nil {
		return errors.New(err)
	}

	replacer := strings.NewReplacer(
		"{module}", module.Name,
		"{source}", module.SourceRoot,
		"{output}", module.OutputDir,
		"{classpath}", strings.Join(classpath, string(os.PathListSeparator)),
	)

	args := make([]string, 0, len(compiler.Command))
	for _, arg := range compiler.Command {
		args = append(args, replacer.Replace(arg))
	}

	logger := log.LoggerFromContext(ctx)
	logger.Debugf("Running %s", strings.Join(args, " "))

	stdout := logger.WriterLevel(log.StdoutLevel)
	defer stdout.Close()

	stderr := logger.WriterLevel(log.StderrLevel)
	defer stderr.Close()

	cmd := exec.Command(ctx, args[0], args[1:]...)
	cmd.Configure(exec.WithDir(module.SourceRoot), exec.WithEnv(compiler.Env), exec.WithOutput(stdout, stderr))

	if err := cmd.Run(ctx); err != nil {
		return errors.Errorf("compile command for module %s failed: %w", module.Name, err)
	}

	return nil
}

// Fingerprint implements Compiler.
func (compiler *CommandCompiler) Fingerprint() string {
	return "command:" + strings.Join(compiler.Command, "\x1f")
}

// PrebuiltCompiler copies an already compiled tree into the output directory.
// Dir defaults to the module source root.
type PrebuiltCompiler struct {
	Dir string
}

// Compile implements Compiler.
func (compiler *PrebuiltCompiler) Compile(ctx context.Context, module *registry.Module, _ []string) error {
	src := compiler.Dir
	if src == "" {
		src = module.SourceRoot
	}

	if !util.IsDir(src) {
		return errors.Errorf("module %s: compiled tree %s does not exist", module.Name, src)
	}

	if err := os.RemoveAll(module.OutputDir); err != nil {
		return errors.New(err)
	}

	log.LoggerFromContext(ctx).Debugf("Copying compiled units from %s", src)

	return util.CopyFolderContentsWithFilter(src, module.OutputDir, func(rel string) bool {
		return !strings.HasPrefix(filepath.Base(rel), ".")
	})
}

// Fingerprint implements Compiler.
func (compiler *PrebuiltCompiler) Fingerprint() string {
	return "prebuilt:" + compiler.Dir
}
