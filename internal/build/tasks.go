package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/distbuild/distbuild/internal/dist"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/taskgraph"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/distbuild/distbuild/util"
)

func (b *Build) registerDistribution() error {
	tasks := []*taskgraph.Task{b.stageTask(), {
		Name:        TaskValidate,
		Description: "Checks that the staged tree holds every required entry",
		DependsOn:   []string{TaskStage},
		Action:      b.validate,
	}}

	archiveTasks := make([]string, 0, len(b.Formats))

	for _, format := range b.Formats {
		name := ArchiveTask(format)
		archiveTasks = append(archiveTasks, name)

		tasks = append(tasks, &taskgraph.Task{
			Name:        name,
			Description: fmt.Sprintf("Writes the %s distribution", format),
			DependsOn:   []string{TaskValidate},
			FinalizedBy: []string{TaskChecksum},
			Inputs:      []string{b.Config.Staging.Dir},
			Outputs:     []string{b.Packager.ArchivePath(format)},
			Properties:  b.archiveProperties(),
			Action: func(ctx context.Context) error {
				return b.writeArchive(ctx, format)
			},
		})
	}

	distDeps := append([]string{}, archiveTasks...)

	checksumOutputs := make([]string, 0, len(b.Formats))
	for _, format := range b.Formats {
		checksumOutputs = append(checksumOutputs, b.Packager.ArchivePath(format)+b.Checksum.Extension())
	}

	var checksumInputs []string
	for _, format := range b.Formats {
		checksumInputs = append(checksumInputs, b.Packager.ArchivePath(format))
	}

	tasks = append(tasks, &taskgraph.Task{
		Name:        TaskChecksum,
		Description: fmt.Sprintf("Writes %s checksums of the written distributions", b.Checksum),
		Inputs:      checksumInputs,
		Outputs:     checksumOutputs,
		Properties:  map[string]string{"algorithm": string(b.Checksum)},
		Action:      b.checksum,
	})

	distDeps = append(distDeps, TaskChecksum)

	if b.Config.ExtensionZipsEnabled() && len(b.Config.Extensions) > 0 {
		tasks = append(tasks, &taskgraph.Task{
			Name:        TaskExtensionZips,
			Description: "Writes one zip per staged extension",
			DependsOn:   []string{TaskValidate},
			Inputs:      []string{filepath.Join(b.Config.Staging.Dir, extensionsDir)},
			Outputs:     []string{b.extensionZipsDir()},
			Properties:  map[string]string{"version": b.Config.Product.Version, "modTime": b.Config.BuildTime.String()},
			Action:      b.writeExtensionZips,
		})

		distDeps = append(distDeps, TaskExtensionZips)
	}

	if b.SigningKey != "" {
		signOutputs := make([]string, 0, len(b.Formats))
		for _, format := range b.Formats {
			signOutputs = append(signOutputs, b.Packager.ArchivePath(format)+dist.SignatureExtension)
		}

		tasks = append(tasks, &taskgraph.Task{
			Name:        TaskSign,
			Description: "Signs the distributions",
			DependsOn:   archiveTasks,
			Inputs:      slices.Concat(checksumInputs, []string{b.SigningKey}),
			Outputs:     signOutputs,
			Action:      b.sign,
		})

		distDeps = append(distDeps, TaskSign)
	}

	tasks = append(tasks, &taskgraph.Task{
		Name:        TaskDist,
		Description: "Builds the complete distribution",
		DependsOn:   distDeps,
	})

	for _, task := range tasks {
		if err := b.Graph.Register(task); err != nil {
			return err
		}
	}

	return nil
}

func (b *Build) stageTask() *taskgraph.Task {
	var inputs []string

	for _, p := range b.Pipelines {
		inputs = append(inputs, p.PackagesDir())

		if len(p.Libraries) > 0 {
			inputs = append(inputs, p.DependenciesDir())
		}
	}

	for _, extension := range b.Config.Extensions {
		if extension.Descriptor != "" {
			inputs = append(inputs, extension.Descriptor)
		}

		for _, pattern := range extension.Lib {
			inputs = append(inputs, filepath.Join(b.Config.Dir, util.GlobBase(pattern)))
		}
	}

	for _, resource := range b.Config.Resources {
		inputs = append(inputs, resource.Source)
	}

	properties := map[string]string{
		"product":   b.Config.Product.Name,
		"version":   b.Config.Product.Version,
		"buildTime": b.Config.BuildTime.String(),
		"token":     b.Config.Stamp.Token,
		"stamp":     strings.Join(b.Config.Stamp.Extensions, ",") + "|" + strings.Join(b.Config.Stamp.Exclude, ","),
	}

	for role, policy := range b.Config.Staging.Duplicates {
		properties["duplicates."+role] = policy
	}

	for i, exception := range b.Config.Staging.Exceptions {
		properties[fmt.Sprintf("exception.%d", i)] = exception.Pattern + "=" + exception.Policy
	}

	return &taskgraph.Task{
		Name:        TaskStage,
		Description: "Assembles the staging tree",
		DependsOn:   []string{TaskModules},
		Inputs:      util.RemoveDuplicatesFromList(inputs),
		Outputs:     []string{b.Config.Staging.Dir},
		Properties:  properties,
		Action:      b.stage,
	}
}

func (b *Build) archiveProperties() map[string]string {
	return map[string]string{
		"product":    b.Config.Product.Name,
		"version":    b.Config.Product.Version,
		"modTime":    b.Config.BuildTime.String(),
		"classifier": b.Config.Distribution.Classifier,
		"launchers":  strings.Join(b.Config.Distribution.Launchers, ","),
	}
}

func (b *Build) extensionZipsDir() string {
	return filepath.Join(b.Config.Distribution.OutputDir, extensionsDir)
}

func (b *Build) stage(ctx context.Context) error {
	packages, resources, err := b.stagingInputs()
	if err != nil {
		return err
	}

	assembler, err := b.assembler()
	if err != nil {
		return err
	}

	result, err := assembler.Assemble(ctx, b.Tree(), packages, resources)
	if err != nil {
		return err
	}

	logger := log.LoggerFromContext(ctx)
	logger.Infof("Staged %d file(s) into %s", len(result.Files), b.Config.Staging.Dir)

	if len(result.Stamped) > 0 {
		logger.Debugf("Stamped version %s into %s", b.Config.Product.Version, strings.Join(result.Stamped, ", "))
	}

	return nil
}

func (b *Build) validate(ctx context.Context) error {
	if err := dist.Validate(b.Config.Staging.Dir, b.Packager.Requirements); err != nil {
		return err
	}

	log.LoggerFromContext(ctx).Debugf("Staged tree %s is complete", b.Config.Staging.Dir)

	return nil
}

func (b *Build) writeArchive(ctx context.Context, format dist.Format) error {
	// The checksum finalizer runs even when this task fails; it must not find a stale sidecar.
	sidecar := b.Packager.ArchivePath(format) + b.Checksum.Extension()
	if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
		return errors.New(err)
	}

	distribution, err := b.Packager.Package(ctx, b.Config.Staging.Dir, format)
	if err != nil {
		return err
	}

	log.LoggerFromContext(ctx).Infof("Wrote %s", distribution.Path)

	return nil
}

func (b *Build) writeExtensionZips(ctx context.Context) error {
	zips, err := dist.ExtensionZips(ctx, filepath.Join(b.Config.Staging.Dir, extensionsDir), b.extensionZipsDir(),
		b.Config.Product.Version, b.Config.BuildTime, b.Parallelism)
	if err != nil {
		return err
	}

	log.LoggerFromContext(ctx).Infof("Wrote %d extension zip(s)", len(zips))

	return nil
}

// writtenArchives returns the archives present in the output directory. A finalizer runs even when
// some archive task failed, so missing archives are skipped. A failed archive task leaves no archive.
func (b *Build) writtenArchives(ctx context.Context) []string {
	logger := log.LoggerFromContext(ctx)

	var archives []string

	for _, format := range b.Formats {
		path := b.Packager.ArchivePath(format)
		if !util.FileExists(path) {
			logger.Warnf("Skipping %s: the archive was not written", filepath.Base(path))
			continue
		}

		archives = append(archives, path)
	}

	return archives
}

func (b *Build) checksum(ctx context.Context) error {
	archives := b.writtenArchives(ctx)
	if len(archives) == 0 {
		return nil
	}

	sidecars, err := b.ChecksumArchives(ctx, archives...)
	if err != nil {
		return err
	}

	log.LoggerFromContext(ctx).Debugf("Wrote %d checksum(s)", len(sidecars))

	return nil
}

func (b *Build) sign(ctx context.Context) error {
	signer, err := dist.LoadSigner(b.SigningKey, []byte(b.Options.SigningPassphrase))
	if err != nil {
		return err
	}

	logger := log.LoggerFromContext(ctx)

	for _, path := range b.writtenArchives(ctx) {
		signature, err := signer.Sign(path)
		if err != nil {
			return errors.WithStackTraceAndPrefix(err, "signing %s", filepath.Base(path))
		}

		logger.Infof("Signed %s with key %s", filepath.Base(signature), signer.KeyID())
	}

	return nil
}

// Clean removes every directory and file written by the build.
func (b *Build) Clean(ctx context.Context) error {
	logger := log.LoggerFromContext(ctx)

	paths := []string{
		b.Config.Build.Dir,
		b.Config.Staging.Dir,
		b.Tree().LockPath(),
		b.Config.Distribution.OutputDir,
		b.Config.Build.StateFile,
	}

	for _, p := range b.Pipelines {
		paths = append(paths, p.Module.OutputDir)
	}

	for _, path := range util.RemoveDuplicatesFromList(paths) {
		if !util.FileExists(path) {
			continue
		}

		logger.Debugf("Removing %s", path)

		if err := os.RemoveAll(path); err != nil {
			return errors.New(err)
		}
	}

	return nil
}
