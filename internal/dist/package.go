package dist

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/distbuild/distbuild/internal/archive"
	"github.com/distbuild/distbuild/internal/classify"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/gobwas/glob"
)

// ExecutableMode is given to launcher files.
const ExecutableMode fs.FileMode = 0o755

// DefaultLaunchers match the files made executable in every archive.
var DefaultLaunchers = []string{"**/*.sh", "**/*launcher*.jar"}

// Distribution is one archive written from a staged tree. It is not modified once written.
type Distribution struct {
	BuildTime time.Time
	Format    Format
	Path      string
	Root      string
	Version   string
}

// Packager writes staged trees into archives under a `<product>-<version>/` top-level directory.
type Packager struct {
	ModTime   time.Time
	Product   string
	Version   string
	OutputDir string
	// Classifier is appended to the archive base name, e.g. "unix" for mirthconnect-4.5.2-unix.tar.gz.
	Classifier   string
	Requirements Requirements
	// Launchers default to DefaultLaunchers.
	Launchers []string
}

// TopLevelDir is the single directory at the root of every archive.
func (packager *Packager) TopLevelDir() string {
	return packager.Product + "-" + packager.Version
}

// ArchivePath returns the output path for a format.
func (packager *Packager) ArchivePath(format Format) string {
	name := packager.TopLevelDir()
	if packager.Classifier != "" {
		name += "-" + packager.Classifier
	}

	return filepath.Join(packager.OutputDir, name+format.Extension())
}

// Modes returns the mode function applied to the staged entries.
func (packager *Packager) Modes() (archive.ModeFunc, error) {
	patterns := packager.Launchers
	if patterns == nil {
		patterns = DefaultLaunchers
	}

	launchers, err := classify.CompileGlobs(patterns)
	if err != nil {
		return nil, err
	}

	return launcherModes(launchers), nil
}

func launcherModes(launchers []glob.Glob) archive.ModeFunc {
	return func(rel string, isDir bool) fs.FileMode {
		if !isDir && classify.MatchAny(launchers, rel) {
			return ExecutableMode
		}

		return archive.DefaultModes(rel, isDir)
	}
}

// Package validates the staged tree and writes it as one archive. Nothing is written when validation fails,
// and an archive left by an earlier run is removed first so that a failed run leaves no archive behind.
func (packager *Packager) Package(ctx context.Context, root string, format Format) (*Distribution, error) {
	if err := os.Remove(packager.ArchivePath(format)); err != nil && !os.IsNotExist(err) {
		return nil, errors.New(err)
	}

	if err := Validate(root, packager.Requirements); err != nil {
		return nil, err
	}

	return packager.write(ctx, root, format)
}

func (packager *Packager) write(ctx context.Context, root string, format Format) (*Distribution, error) {
	modes, err := packager.Modes()
	if err != nil {
		return nil, err
	}

	dest := packager.ArchivePath(format)

	if err := writeArchive(dest, format, packager.ModTime, func(writer archive.Writer) error {
		return archive.AddTree(writer, root, packager.TopLevelDir(), modes)
	}); err != nil {
		return nil, err
	}

	log.LoggerFromContext(ctx).Infof("Wrote %s", dest)

	return &Distribution{
		Format:    format,
		Path:      dest,
		Root:      root,
		Version:   packager.Version,
		BuildTime: packager.ModTime,
	}, nil
}

// writeArchive writes to a temporary file and renames it so that a failed run never leaves a partial archive.
func writeArchive(dest string, format Format, modTime time.Time, fill func(archive.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return errors.New(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return errors.New(err)
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	writer := format.newWriter(tmp, modTime)

	if err := fill(writer); err != nil {
		return errors.WithStackTraceAndPrefix(err, "writing %s", dest)
	}

	if err := writer.Close(); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return errors.New(err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.New(err)
	}

	return errors.WithStackTrace(os.Rename(tmp.Name(), dest))
}
