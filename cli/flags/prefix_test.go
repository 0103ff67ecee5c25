package flags_test

import (
	"testing"

	"github.com/distbuild/distbuild/cli/flags"
	"github.com/stretchr/testify/assert"
)

func TestPrefix(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		prefix  flags.Prefix
		name    string
		envVar  string
		flagKey string
	}{
		{flags.Prefix{flags.DistbuildPrefix}, "log-level", "DISTBUILD_LOG_LEVEL", "distbuild-log-level"},
		{flags.Prefix{flags.DistbuildPrefix}.Append("dist"), "skip-signing", "DISTBUILD_DIST_SKIP_SIGNING", "distbuild-dist-skip-signing"},
		{flags.Prefix{}.Prepend(flags.DistbuildPrefix), "no_color", "DISTBUILD_NO_COLOR", "distbuild-no-color"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.envVar, tc.prefix.EnvVar(tc.name))
			assert.Equal(t, []string{tc.envVar}, tc.prefix.EnvVars(tc.name))
			assert.Equal(t, tc.flagKey, tc.prefix.FlagName(tc.name))
		})
	}
}
