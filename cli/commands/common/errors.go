package common

import (
	"fmt"
	"strings"
)

// Exit codes returned by main.
const (
	// ExitCodeFailure is returned when a task or the validation of the staged tree fails.
	ExitCodeFailure = 1
	// ExitCodeConfiguration is returned when the build definition or the task graph is invalid,
	// before any task runs.
	ExitCodeConfiguration = 2
)

// UnknownModuleError is returned when a command names a module the build definition does not declare.
type UnknownModuleError struct {
	Name    string
	Modules []string
}

func (err UnknownModuleError) Error() string {
	return fmt.Sprintf("unknown module %q, available modules: %s", err.Name, strings.Join(err.Modules, ", "))
}
