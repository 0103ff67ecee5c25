package staging

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/distbuild/distbuild/internal/classify"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/stamp"
	"github.com/distbuild/distbuild/pkg/log"
	"github.com/distbuild/distbuild/util"
	"github.com/gobwas/glob"
)

const (
	// VersionFile is written at the staging root.
	VersionFile = "VERSION.txt"

	defaultLockAttempts   = 3
	defaultLockRetryDelay = time.Second
)

// Tree is the staging tree. It is owned by a single assembly at a time.
type Tree struct {
	// Layout lists the directories created for each role. Nil means DefaultLayout.
	Layout map[Role][]string
	Root   string
}

// Dirs returns every layout directory, sorted.
func (tree Tree) Dirs() []string {
	layout := tree.Layout
	if layout == nil {
		layout = DefaultLayout()
	}

	var dirs []string
	for _, roleDirs := range layout {
		dirs = append(dirs, roleDirs...)
	}

	sort.Strings(dirs)

	return util.RemoveDuplicatesFromList(dirs)
}

// LockPath is the lock file guarding the tree. It lives next to the root so it never ends up in an archive.
func (tree Tree) LockPath() string {
	return filepath.Clean(tree.Root) + ".lock"
}

// Package places a single file, usually a module package, into a staging directory.
type Package struct {
	Role   Role
	Source string
	// Dest is the slash separated directory relative to the staging root.
	Dest string
	// Name overrides the base name of Source.
	Name string
}

// Resource copies a file or a directory tree into a staging directory.
type Resource struct {
	Role   Role
	Source string
	Dest   string
	// Include and Exclude are globs relative to Source. Empty Include copies everything.
	Include []string
	Exclude []string
}

// VersionInfo is written to VERSION.txt.
type VersionInfo struct {
	BuildTime time.Time
	Product   string
	Version   string
}

// StampOptions replaces the version token in the staged text files.
type StampOptions struct {
	Token   string
	Version string
	Filter  stamp.Filter
}

// Duplicate records a staged path written more than once.
type Duplicate struct {
	Path   string
	First  string
	Second string
	Policy DuplicatePolicy
}

// Result describes one assembly.
type Result struct {
	// Files are the slash separated staged paths, sorted.
	Files      []string
	Duplicates []Duplicate
	Stamped    []string
}

// Assembler copies packages and resources into a staging tree in role order.
type Assembler struct {
	Policies   map[Role]DuplicatePolicy
	Version    *VersionInfo
	Stamp      *StampOptions
	Exceptions []PolicyException

	LockAttempts   int
	LockRetryDelay time.Duration
}

// Assemble runs an assembly with the default policies.
func Assemble(ctx context.Context, tree Tree, packages []Package, resources []Resource) (*Result, error) {
	return (&Assembler{}).Assemble(ctx, tree, packages, resources)
}

type copyOp struct {
	role     Role
	src      string
	dest     string
	include  []glob.Glob
	exclude  []glob.Glob
	isSingle bool
}

// Assemble copies the packages and resources into the tree. Every layout directory is created even when
// nothing is copied into it. Files already in the tree are overwritten; duplicates within this assembly
// follow the duplicate policy of their role.
func (assembler *Assembler) Assemble(ctx context.Context, tree Tree, packages []Package, resources []Resource) (*Result, error) {
	logger := log.LoggerFromContext(ctx)

	policies, err := newPolicyTable(assembler.Policies, assembler.Exceptions)
	if err != nil {
		return nil, err
	}

	ops, err := buildOps(packages, resources)
	if err != nil {
		return nil, err
	}

	lockfile, err := util.AcquireLockfile(ctx, tree.LockPath(), assembler.lockAttempts(), assembler.lockRetryDelay())
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := lockfile.Unlock(); err != nil {
			logger.Warnf("Failed to release %s: %v", lockfile.Path(), err)
		}
	}()

	for _, dir := range append([]string{""}, tree.Dirs()...) {
		if err := util.EnsureDirectory(filepath.Join(tree.Root, filepath.FromSlash(dir))); err != nil {
			return nil, errors.New(CopyError{Path: filepath.Join(tree.Root, dir), Err: err})
		}
	}

	var (
		result = &Result{}
		staged = make(map[string]string)
	)

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err)
		}

		files, err := op.files()
		if err != nil {
			return nil, errors.New(CopyError{Path: op.src, Err: err})
		}

		for _, file := range files {
			if previous, ok := staged[file.rel]; ok {
				policy := policies.policy(op.role, file.rel)
				duplicate := Duplicate{Path: file.rel, First: previous, Second: file.src, Policy: policy}
				result.Duplicates = append(result.Duplicates, duplicate)

				switch policy {
				case Fail:
					return nil, errors.New(DuplicateFileError{Path: file.rel, First: previous, Second: file.src})
				case Skip:
					logger.Debugf("Keeping %s from %s, skipping %s", file.rel, previous, file.src)
					continue
				case Warn:
					logger.Warnf("%s from %s overwrites the copy from %s", file.rel, file.src, previous)
				case Overwrite:
				}
			}

			if file.isDir {
				if err := os.MkdirAll(filepath.Join(tree.Root, filepath.FromSlash(file.rel)), os.ModePerm); err != nil {
					return nil, errors.New(CopyError{Path: file.src, Err: err})
				}

				continue
			}

			if err := util.CopyFile(file.src, filepath.Join(tree.Root, filepath.FromSlash(file.rel))); err != nil {
				return nil, errors.New(CopyError{Path: file.src, Err: err})
			}

			staged[file.rel] = file.src
		}
	}

	if assembler.Version != nil {
		if err := writeVersionFile(tree.Root, assembler.Version); err != nil {
			return nil, err
		}

		staged[VersionFile] = VersionFile
	}

	if assembler.Stamp != nil {
		token := assembler.Stamp.Token
		if token == "" {
			token = stamp.DefaultToken
		}

		stamped, err := stamp.StampVersion(tree.Root, assembler.Stamp.Version, token, assembler.Stamp.Filter)
		if err != nil {
			return nil, err
		}

		result.Stamped = stamped
	}

	for rel := range staged {
		result.Files = append(result.Files, rel)
	}

	sort.Strings(result.Files)

	logger.Debugf("Staged %d file(s) into %s", len(result.Files), tree.Root)

	return result, nil
}

func (assembler *Assembler) lockAttempts() int {
	if assembler.LockAttempts > 0 {
		return assembler.LockAttempts
	}

	return defaultLockAttempts
}

func (assembler *Assembler) lockRetryDelay() time.Duration {
	if assembler.LockRetryDelay > 0 {
		return assembler.LockRetryDelay
	}

	return defaultLockRetryDelay
}

func buildOps(packages []Package, resources []Resource) ([]copyOp, error) {
	ops := make([]copyOp, 0, len(packages)+len(resources))

	for _, pkg := range packages {
		dest, err := cleanDest(pkg.Dest)
		if err != nil {
			return nil, err
		}

		name := pkg.Name
		if name == "" {
			name = filepath.Base(pkg.Source)
		}

		ops = append(ops, copyOp{role: pkg.Role, src: pkg.Source, dest: path.Join(dest, name), isSingle: true})
	}

	for _, resource := range resources {
		dest, err := cleanDest(resource.Dest)
		if err != nil {
			return nil, err
		}

		include, err := classify.CompileGlobs(resource.Include)
		if err != nil {
			return nil, err
		}

		exclude, err := classify.CompileGlobs(resource.Exclude)
		if err != nil {
			return nil, err
		}

		ops = append(ops, copyOp{role: resource.Role, src: resource.Source, dest: dest, include: include, exclude: exclude})
	}

	slices.SortStableFunc(ops, func(a, b copyOp) int {
		return roleIndex(a.role) - roleIndex(b.role)
	})

	return ops, nil
}

type opFile struct {
	src   string
	rel   string
	isDir bool
}

func (op copyOp) files() ([]opFile, error) {
	info, err := os.Stat(op.src)
	if err != nil {
		return nil, err
	}

	if op.isSingle || !info.IsDir() {
		dest := op.dest
		if !op.isSingle {
			dest = path.Join(op.dest, filepath.Base(op.src))
		}

		if info.IsDir() {
			return nil, errors.Errorf("%s is a directory, expected a file", op.src)
		}

		return []opFile{{src: op.src, rel: dest}}, nil
	}

	var files []opFile

	err = filepath.WalkDir(op.src, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(op.src, file)
		if err != nil || rel == "." {
			return err
		}

		rel = filepath.ToSlash(rel)

		if classify.MatchAny(op.exclude, rel) {
			if entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if entry.IsDir() {
			if len(op.include) == 0 {
				files = append(files, opFile{src: file, rel: path.Join(op.dest, rel), isDir: true})
			}

			return nil
		}

		if len(op.include) > 0 && !classify.MatchAny(op.include, rel) {
			return nil
		}

		files = append(files, opFile{src: file, rel: path.Join(op.dest, rel)})

		return nil
	})

	return files, err
}

func writeVersionFile(root string, info *VersionInfo) error {
	content := fmt.Sprintf("product=%s\nversion=%s\nbuild.time=%s\n",
		info.Product, info.Version, info.BuildTime.UTC().Format(time.RFC3339))

	if err := os.WriteFile(filepath.Join(root, VersionFile), []byte(content), 0o644); err != nil {
		return errors.New(CopyError{Path: VersionFile, Err: err})
	}

	return nil
}
