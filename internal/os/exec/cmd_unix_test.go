//go:build !windows

package exec_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/distbuild/distbuild/internal/os/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRun(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		script      string
		env         map[string]string
		expectedOut string
		expectedErr bool
	}{
		{
			name:        "output",
			script:      "echo hello",
			expectedOut: "hello\n",
		},
		{
			name:        "env",
			script:      "echo $GREETING",
			env:         map[string]string{"GREETING": "hi"},
			expectedOut: "hi\n",
		},
		{
			name:        "exit status",
			script:      "exit 3",
			expectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer

			ctx := context.Background()
			cmd := exec.Command(ctx, "sh", "-c", tc.script)
			cmd.Configure(exec.WithDir(t.TempDir()), exec.WithEnv(tc.env), exec.WithOutput(&stdout, &stderr))

			err := cmd.Run(ctx)
			if tc.expectedErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedOut, stdout.String())
		})
	}
}

func TestCancelledRunWaitsForCommand(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := exec.Command(ctx, "sh", "-c", "sleep 0.2; echo done")
	cmd.Configure(exec.WithOutput(&stdout, &stdout))

	require.NoError(t, cmd.Run(ctx))
	assert.Equal(t, "done\n", stdout.String())
}
