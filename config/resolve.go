package config

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/distbuild/distbuild/internal/dist"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/distbuild/distbuild/internal/staging"
	"github.com/distbuild/distbuild/internal/stamp"
	"github.com/distbuild/distbuild/util"
)

func (cfg *Config) path(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	return util.CanonicalPath(path, cfg.Dir)
}

// resolvePaths makes every configured path absolute and fills the per-module defaults.
func (cfg *Config) resolvePaths() error {
	var err error

	for _, target := range []*string{
		&cfg.Build.Dir,
		&cfg.Build.StateFile,
		&cfg.Staging.Dir,
		&cfg.Distribution.OutputDir,
		&cfg.Distribution.SigningKey,
	} {
		if *target, err = cfg.path(*target); err != nil {
			return err
		}
	}

	for _, module := range cfg.Modules {
		if module.Output == "" {
			module.Output = filepath.Join(cfg.Build.Dir, module.Name, "classes")
		}

		for _, target := range []*string{&module.Source, &module.Output, &module.Prebuilt} {
			if *target, err = cfg.path(*target); err != nil {
				return err
			}
		}
	}

	for _, extension := range cfg.Extensions {
		if extension.Descriptor, err = cfg.path(extension.Descriptor); err != nil {
			return err
		}
	}

	for _, resource := range cfg.Resources {
		if resource.Source, err = cfg.path(resource.Source); err != nil {
			return err
		}
	}

	return nil
}

// ModuleBuildDir is where the module's packages and libraries are written.
func (cfg *Config) ModuleBuildDir(module string) string {
	return filepath.Join(cfg.Build.Dir, module)
}

// Validate checks the references and enumerated values of the definition.
func (cfg *Config) Validate() error {
	errs := &errors.MultiError{}

	modules := make(map[string]bool, len(cfg.Modules))

	for _, module := range cfg.Modules {
		if modules[module.Name] {
			errs = errs.Append(errors.New(DuplicateBlockError{Kind: "module", Name: module.Name}))
		}

		modules[module.Name] = true

		if module.Compile == nil && module.Prebuilt == "" {
			errs = errs.Append(errors.New(MissingCompilerError(module.Name)))
		}

		if module.Compile != nil {
			if _, err := module.Compile.Args(); err != nil {
				errs = errs.Append(errors.WithStackTraceAndPrefix(err, "module %q", module.Name))
			}
		}
	}

	for _, module := range cfg.Modules {
		for _, required := range module.Requires {
			if !modules[required] {
				errs = errs.Append(errors.New(UnknownModuleReferenceError{Block: "module " + module.Name, Module: required}))
			}
		}
	}

	extensions := make(map[string]bool, len(cfg.Extensions))

	for _, extension := range cfg.Extensions {
		block := fmt.Sprintf("extension %q", extension.Name)

		if extensions[extension.Name] {
			errs = errs.Append(errors.New(DuplicateBlockError{Kind: "extension", Name: extension.Name}))
		}

		extensions[extension.Name] = true

		if !modules[extension.Module] {
			errs = errs.Append(errors.New(UnknownModuleReferenceError{Block: block, Module: extension.Module}))
		}

		errs = errs.Append(checkValue(block, "kind", extension.Kind, ExtensionConnector, ExtensionDatatype, ExtensionPlugin))
		errs = errs.Append(checkValue(block, "side", extension.Side, SideServer, SideClient))
	}

	resources := make(map[string]bool, len(cfg.Resources))

	for _, resource := range cfg.Resources {
		if resources[resource.Name] {
			errs = errs.Append(errors.New(DuplicateBlockError{Kind: "resource", Name: resource.Name}))
		}

		resources[resource.Name] = true

		if _, err := staging.ParseRole(resource.Role); err != nil {
			errs = errs.Append(err)
		}
	}

	for role, policy := range cfg.Staging.Duplicates {
		if _, err := staging.ParseRole(role); err != nil {
			errs = errs.Append(err)
		}

		if _, err := staging.ParsePolicy(policy); err != nil {
			errs = errs.Append(err)
		}
	}

	for _, exception := range cfg.Staging.Exceptions {
		if _, err := staging.ParsePolicy(exception.Policy); err != nil {
			errs = errs.Append(err)
		}
	}

	for _, format := range cfg.Distribution.Formats {
		if _, err := dist.ParseFormat(format); err != nil {
			errs = errs.Append(err)
		}
	}

	if _, err := stamp.ParseAlgorithm(cfg.Distribution.Checksum); err != nil {
		errs = errs.Append(err)
	}

	return errs.ErrorOrNil()
}

// checkValue accepts the empty value, which selects the default.
func checkValue(block, attribute, value string, allowed ...string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}

	return errors.New(InvalidValueError{Block: block, Attribute: attribute, Value: value, Allowed: allowed})
}
