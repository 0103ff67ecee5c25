package flags

import (
	"strings"
)

// DistbuildPrefix is prepended to the environment variable of every flag.
const DistbuildPrefix = "DISTBUILD"

// Prefix is a list of name segments joined into flag names and environment variables.
type Prefix []string

// Prepend returns a new prefix with val in front.
func (prefix Prefix) Prepend(val string) Prefix {
	return append([]string{val}, prefix...)
}

// Append returns the prefix with val at the end.
func (prefix Prefix) Append(val string) Prefix {
	return append(prefix, val)
}

// EnvVar returns the environment variable of the named flag, e.g. DISTBUILD_LOG_LEVEL.
func (prefix Prefix) EnvVar(name string) string {
	name = strings.Join(append(prefix, name), "_")

	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// EnvVars returns the environment variables of the named flags.
func (prefix Prefix) EnvVars(names ...string) []string {
	var envVars = make([]string, len(names))

	for i := range names {
		envVars[i] = prefix.EnvVar(names[i])
	}

	return envVars
}

// FlagName returns the dashed flag name.
func (prefix Prefix) FlagName(name string) string {
	name = strings.Join(append(prefix, name), "-")

	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}
