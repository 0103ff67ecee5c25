package info_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/distbuild/distbuild/cli/commands/common"
	"github.com/distbuild/distbuild/cli/commands/info"
	"github.com/distbuild/distbuild/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definition = `
product "mirthconnect" {
  version    = "4.5.2"
  build_time = "2024-03-01T12:00:00Z"
}

module "donkey" {
  source   = "donkey"
  prebuilt = "donkey/classes"

  package "donkey" {
    include = ["com/mirth/connect/donkey/**"]
    stage   = "server-lib"
  }
}

module "server" {
  source   = "server"
  prebuilt = "server/classes"
  requires = ["donkey"]

  package "mirth-server" {
    include = ["com/mirth/connect/server/**"]
    stage   = "server-lib"
  }
}

module "cli" {
  source   = "cli"
  prebuilt = "cli/classes"
  requires = ["server"]

  package "mirth-cli" {
    include = ["com/mirth/connect/cli/**"]
    stage   = "cli-lib"
  }
}
`

func TestWriteListsTransitiveUpstream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, options.DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(definition), 0o644))

	opts, err := options.NewBuildOptionsForTest(path)
	require.NoError(t, err)

	b, err := common.LoadBuild(opts)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, info.Write(&out, b))

	assert.Contains(t, out.String(), "requires: server\n")
	assert.Contains(t, out.String(), "upstream: server, donkey\n")
	assert.Contains(t, out.String(), "upstream: -\n")
}
