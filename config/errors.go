package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-version"
)

// MissingProductError is returned when the file has no product block.
type MissingProductError string

func (err MissingProductError) Error() string {
	return fmt.Sprintf("%s: a product block is required", string(err))
}

// InvalidVersionError is returned for a product version that is not a semantic version.
type InvalidVersionError struct {
	Err     error
	Version string
}

func (err InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid product version %q: %v", err.Version, err.Err)
}

func (err InvalidVersionError) Unwrap() error {
	return err.Err
}

// InvalidDistbuildVersion is returned when the running binary does not satisfy distbuild_version_constraint.
type InvalidDistbuildVersion struct {
	CurrentVersion     *version.Version
	VersionConstraints version.Constraints
}

func (err InvalidDistbuildVersion) Error() string {
	return fmt.Sprintf("The currently running version of distbuild (%s) is not compatible with the version constraint requiring (%s).",
		err.CurrentVersion.String(), err.VersionConstraints.String())
}

// DuplicateBlockError is returned when two blocks of the same kind share a label.
type DuplicateBlockError struct {
	Kind string
	Name string
}

func (err DuplicateBlockError) Error() string {
	return fmt.Sprintf("%s %q is declared more than once", err.Kind, err.Name)
}

// UnknownModuleReferenceError is returned when a block names a module that is not declared.
type UnknownModuleReferenceError struct {
	Block  string
	Module string
}

func (err UnknownModuleReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown module %q", err.Block, err.Module)
}

// InvalidValueError is returned for an attribute value outside its allowed set.
type InvalidValueError struct {
	Block     string
	Attribute string
	Value     string
	Allowed   []string
}

func (err InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid %s %q, expected one of: %s", err.Block, err.Attribute, err.Value, strings.Join(err.Allowed, ", "))
}

// MissingCompilerError is returned for a module with neither a compile block nor a prebuilt directory.
type MissingCompilerError string

func (err MissingCompilerError) Error() string {
	return fmt.Sprintf("module %q needs either a compile block or a prebuilt directory", string(err))
}

// InvalidCompileCommandError is returned for a compile block whose command cannot be used.
type InvalidCompileCommandError string

func (err InvalidCompileCommandError) Error() string {
	return "compile: " + string(err)
}

// PanicWhileParsingConfigError wraps a panic raised by the HCL decoder.
type PanicWhileParsingConfigError struct {
	RecoveredValue any
	ConfigFile     string
}

func (err PanicWhileParsingConfigError) Error() string {
	return fmt.Sprintf("Recovering panic while parsing '%s'. Got error of type '%v': %v", err.ConfigFile, reflect.TypeOf(err.RecoveredValue), err.RecoveredValue)
}
