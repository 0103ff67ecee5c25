// Package staging merges module packages and resource trees into the staging tree that mirrors the installed product.
package staging

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/distbuild/distbuild/internal/classify"
	"github.com/distbuild/distbuild/internal/errors"
	"github.com/gobwas/glob"
)

// Role classifies the directories of the staging tree.
type Role string

const (
	RoleLibraries     Role = "libraries"
	RoleConfiguration Role = "configuration"
	RoleExtensions    Role = "extensions"
	RoleWeb           Role = "web"
	RoleDocumentation Role = "documentation"
	RoleLogs          Role = "logs"
)

// RoleOrder is the order in which roles are copied. Logs are never populated.
var RoleOrder = []Role{RoleLibraries, RoleConfiguration, RoleExtensions, RoleWeb, RoleDocumentation}

// ParseRole resolves a role name.
func ParseRole(name string) (Role, error) {
	role := Role(strings.ToLower(name))

	if role == RoleLogs || slices.Contains(RoleOrder, role) {
		return role, nil
	}

	return "", errors.Errorf("unknown staging role %q", name)
}

func roleIndex(role Role) int {
	if idx := slices.Index(RoleOrder, role); idx >= 0 {
		return idx
	}

	return len(RoleOrder)
}

// DefaultLayout lists the directories created under the staging root for each role.
func DefaultLayout() map[Role][]string {
	return map[Role][]string{
		RoleLibraries:     {"server-lib", "client-lib", "manager-lib", "cli-lib"},
		RoleConfiguration: {"conf"},
		RoleExtensions:    {"extensions"},
		RoleWeb:           {"public_html", "public_api_html", "webapps"},
		RoleDocumentation: {"docs"},
		RoleLogs:          {"logs"},
	}
}

// DuplicatePolicy decides what happens when one assembly writes the same relative path twice.
type DuplicatePolicy int

const (
	// Overwrite keeps the last copy.
	Overwrite DuplicatePolicy = iota
	// Skip keeps the first copy.
	Skip
	// Warn keeps the last copy and logs the duplicate.
	Warn
	// Fail aborts the assembly.
	Fail
)

var policyNames = map[DuplicatePolicy]string{
	Overwrite: "overwrite",
	Skip:      "skip",
	Warn:      "warn",
	Fail:      "fail",
}

func (policy DuplicatePolicy) String() string {
	return policyNames[policy]
}

// ParsePolicy resolves a policy name.
func ParsePolicy(name string) (DuplicatePolicy, error) {
	for policy, policyName := range policyNames {
		if strings.EqualFold(policyName, name) {
			return policy, nil
		}
	}

	return Overwrite, errors.Errorf("unknown duplicate policy %q", name)
}

// DefaultPolicies is the duplicate policy of each role.
func DefaultPolicies() map[Role]DuplicatePolicy {
	return map[Role]DuplicatePolicy{
		RoleLibraries:     Warn,
		RoleConfiguration: Overwrite,
		RoleExtensions:    Fail,
		RoleWeb:           Overwrite,
		RoleDocumentation: Overwrite,
	}
}

// PolicyException overrides the role policy for the staged paths matching Pattern.
type PolicyException struct {
	Pattern string
	Policy  DuplicatePolicy
}

// DuplicateFileError is returned when the Fail policy sees a path written twice.
type DuplicateFileError struct {
	Path   string
	First  string
	Second string
}

func (err DuplicateFileError) Error() string {
	return fmt.Sprintf("%s is staged by both %s and %s", err.Path, err.First, err.Second)
}

// CopyError names the path whose copy failed.
type CopyError struct {
	Err  error
	Path string
}

func (err CopyError) Error() string {
	return fmt.Sprintf("staging %s: %v", err.Path, err.Err)
}

func (err CopyError) Unwrap() error {
	return err.Err
}

type policyTable struct {
	roles      map[Role]DuplicatePolicy
	exceptions []compiledException
}

type compiledException struct {
	glob   glob.Glob
	policy DuplicatePolicy
}

func newPolicyTable(roles map[Role]DuplicatePolicy, exceptions []PolicyException) (*policyTable, error) {
	table := &policyTable{roles: DefaultPolicies()}

	for role, policy := range roles {
		table.roles[role] = policy
	}

	for _, exception := range exceptions {
		globs, err := classify.CompileGlobs([]string{exception.Pattern})
		if err != nil {
			return nil, err
		}

		table.exceptions = append(table.exceptions, compiledException{glob: globs[0], policy: exception.Policy})
	}

	return table, nil
}

// policy returns the policy for a slash separated staged path. The first matching exception wins.
func (table *policyTable) policy(role Role, rel string) DuplicatePolicy {
	for _, exception := range table.exceptions {
		if exception.glob.Match(rel) {
			return exception.policy
		}
	}

	return table.roles[role]
}

func cleanDest(dest string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(dest)))

	if clean == "." {
		return "", nil
	}

	if filepath.IsAbs(dest) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Errorf("staging destination %q must be relative to the staging root", dest)
	}

	return clean, nil
}
