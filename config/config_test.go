package config_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/distbuild/distbuild/config"
	"github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mirthConfig = `
distbuild_version_constraint = ">= 0.1"

product "mirthconnect" {
  version    = env("MIRTH_VERSION", "4.5.2")
  build_time = "2024-03-01T12:00:00Z"
}

build {
  parallelism = 4
}

module "donkey" {
  source   = "donkey"
  prebuilt = "donkey/classes"

  package "donkey-model" {
    include = ["com/mirth/connect/donkey/model/**"]
    stage   = "server-lib/donkey"
  }

  package "donkey-server" {
    include = ["com/mirth/connect/donkey/**"]
    exclude = ["com/mirth/connect/donkey/model/**"]
    stage   = "server-lib/donkey"
  }
}

module "server" {
  source          = "server"
  requires        = ["donkey"]
  libraries       = ["lib/**/*.jar"]
  libraries_stage = "server-lib"

  compile {
    command = ["javac", "-d", "{output}", "-cp", "{classpath}"]
    env     = { JAVA_HOME = "/opt/jdk" }
  }

  package "mirth-server" {
    include    = ["com/mirth/connect/server/**"]
    main_class = "com.mirth.connect.server.Mirth"
    file_name  = format("%s-server.jar", product)
    stage      = "server-lib"
  }

  package "mirth-client-core" {
    include       = ["com/mirth/connect/model/**"]
    allow_overlap = true
    stage         = "client-lib"
  }
}

extension "http" {
  module     = "server"
  kind       = "connector"
  shared     = ["com/mirth/connect/connectors/http/*Properties.class"]
  server     = ["com/mirth/connect/connectors/http/**"]
  descriptor = "server/src/com/mirth/connect/connectors/http/plugin.xml"
  lib        = ["server/lib/extensions/http/*.jar"]
}

resource "conf" {
  role    = "configuration"
  source  = "server/conf"
  dest    = "conf"
  exclude = ["**/Thumbs.db"]
}

staging {
  duplicates = { libraries = "fail" }

  exception {
    pattern = "conf/*.properties"
    policy  = "skip"
  }
}

distribution {
  formats        = ["tar.gz"]
  classifier     = "unix"
  required_files = ["server-lib/${product}-server.jar"]
  extension_zips = false
}
`

func lookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	}
}

func TestParseFullDefinition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFile)

	cfg, err := config.Parse([]byte(mirthConfig), path, config.LoadOptions{
		LookupEnv:        lookup(nil),
		DistbuildVersion: version.Must(version.NewVersion("1.0.0")),
	})
	require.NoError(t, err)

	assert.Equal(t, "mirthconnect", cfg.Product.Name)
	assert.Equal(t, "4.5.2", cfg.Product.Version)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), cfg.BuildTime)
	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, []string{"donkey", "server"}, cfg.ModuleNames())

	assert.Equal(t, 4, cfg.Build.Parallelism)
	assert.Equal(t, filepath.Join(dir, "build"), cfg.Build.Dir)
	assert.Equal(t, filepath.Join(dir, "build", "setup"), cfg.Staging.Dir)
	assert.Equal(t, filepath.Join(dir, "build", "dist"), cfg.Distribution.OutputDir)

	donkey := cfg.Module("donkey")
	require.NotNil(t, donkey)
	assert.Equal(t, filepath.Join(dir, "donkey"), donkey.Source)
	assert.Equal(t, filepath.Join(dir, "donkey", "classes"), donkey.Prebuilt)
	assert.Equal(t, filepath.Join(dir, "build", "donkey", "classes"), donkey.Output)
	assert.Len(t, donkey.Packages, 2)

	server := cfg.Module("server")
	require.NotNil(t, server)
	require.NotNil(t, server.Compile)
	assert.Equal(t, "/opt/jdk", server.Compile.Env["JAVA_HOME"])

	args, err := server.Compile.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"javac", "-d", "{output}", "-cp", "{classpath}"}, args)
	assert.Equal(t, "server-lib", server.LibrariesStage)
	assert.Equal(t, "mirthconnect-server.jar", server.Packages[0].FileName)
	assert.True(t, server.Packages[1].AllowOverlap)

	require.Len(t, cfg.Extensions, 1)
	assert.Equal(t, []string{"com/mirth/connect/connectors/http/**"}, cfg.Extensions[0].SidePatterns())
	assert.Equal(t, filepath.Join(dir, "server", "src", "com", "mirth", "connect", "connectors", "http", "plugin.xml"), cfg.Extensions[0].Descriptor)

	assert.Equal(t, "fail", cfg.Staging.Duplicates["libraries"])
	require.Len(t, cfg.Staging.Exceptions, 1)

	assert.Equal(t, []string{"tar.gz"}, cfg.Distribution.Formats)
	assert.Equal(t, "sha256", cfg.Distribution.Checksum)
	assert.Equal(t, []string{"server-lib/mirthconnect-server.jar"}, cfg.Distribution.RequiredFiles)
	assert.False(t, cfg.ExtensionZipsEnabled())
}

func TestParseVersionSources(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)

	cfg, err := config.Parse([]byte(mirthConfig), path, config.LoadOptions{LookupEnv: lookup(map[string]string{"MIRTH_VERSION": "4.6.0"})})
	require.NoError(t, err)
	assert.Equal(t, "4.6.0", cfg.Product.Version)

	cfg, err = config.Parse([]byte(mirthConfig), path, config.LoadOptions{LookupEnv: lookup(nil), Version: "5.0.0-rc1"})
	require.NoError(t, err)
	assert.Equal(t, "5.0.0-rc1", cfg.Product.Version)

	_, err = config.Parse([]byte(mirthConfig), path, config.LoadOptions{LookupEnv: lookup(nil), Version: "not a version"})

	var invalid config.InvalidVersionError
	require.ErrorAs(t, err, &invalid)
}

func TestParseBuildTimeFromSourceDateEpoch(t *testing.T) {
	t.Parallel()

	content := `
product "mirthconnect" {
  version = "4.5.2"
}
`

	cfg, err := config.Parse([]byte(content), filepath.Join(t.TempDir(), "distbuild.hcl"), config.LoadOptions{
		LookupEnv: lookup(map[string]string{config.SourceDateEpochEnv: "1700000000"}),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), cfg.BuildTime)

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)

	cfg, err = config.Parse([]byte(content), filepath.Join(t.TempDir(), "distbuild.hcl"), config.LoadOptions{
		LookupEnv: lookup(nil),
		Now:       func() time.Time { return fixed },
	})
	require.NoError(t, err)
	assert.Equal(t, fixed.Truncate(time.Second), cfg.BuildTime)
}

func TestParseVersionConstraint(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte(mirthConfig), filepath.Join(t.TempDir(), "distbuild.hcl"), config.LoadOptions{
		LookupEnv:        lookup(nil),
		DistbuildVersion: version.Must(version.NewVersion("0.0.9")),
	})

	var invalid config.InvalidDistbuildVersion
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "0.0.9")
}

func TestParseValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "missing product",
			content:  `build {}`,
			expected: "a product block is required",
		},
		{
			name: "unknown required module",
			content: `
product "p" { version = "1.0.0" }
module "a" {
  source   = "a"
  prebuilt = "a/classes"
  requires = ["b"]
}`,
			expected: `module a references unknown module "b"`,
		},
		{
			name: "duplicate module",
			content: `
product "p" { version = "1.0.0" }
module "a" {
  source   = "a"
  prebuilt = "a"
}
module "a" {
  source   = "a"
  prebuilt = "a"
}`,
			expected: `module "a" is declared more than once`,
		},
		{
			name: "missing compiler",
			content: `
product "p" { version = "1.0.0" }
module "a" { source = "a" }`,
			expected: `module "a" needs either a compile block or a prebuilt directory`,
		},
		{
			name: "compile command and command line",
			content: `
product "p" { version = "1.0.0" }
module "a" {
  source = "a"
  compile {
    command      = ["make"]
    command_line = "make all"
  }
}`,
			expected: `module "a": compile: command and command_line are mutually exclusive`,
		},
		{
			name: "unterminated command line",
			content: `
product "p" { version = "1.0.0" }
module "a" {
  source = "a"
  compile { command_line = "javac 'unterminated" }
}`,
			expected: `compile: command_line`,
		},
		{
			name: "bad extension side",
			content: `
product "p" { version = "1.0.0" }
module "a" {
  source   = "a"
  prebuilt = "a"
}
extension "x" {
  module = "a"
  side   = "both"
}`,
			expected: `invalid side "both"`,
		},
		{
			name: "bad format and policy",
			content: `
product "p" { version = "1.0.0" }
staging {
  duplicates = { libraries = "explode" }
}
distribution {
  formats = ["rar"]
}`,
			expected: `unsupported distribution format "rar"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse([]byte(tc.content), filepath.Join(t.TempDir(), "distbuild.hcl"), config.LoadOptions{LookupEnv: lookup(nil)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expected)
		})
	}
}

func TestParseDiagnostics(t *testing.T) {
	t.Parallel()

	var diagnostics bytes.Buffer

	_, err := config.Parse([]byte(`product "p" {`), filepath.Join(t.TempDir(), "distbuild.hcl"), config.LoadOptions{
		LookupEnv:         lookup(nil),
		DiagnosticsWriter: &diagnostics,
		DisableColor:      true,
	})
	require.Error(t, err)
	assert.Contains(t, diagnostics.String(), "distbuild.hcl")
}

func TestCompileArgs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		compile  config.CompileConfig
		expected []string
	}{
		{
			name:     "list",
			compile:  config.CompileConfig{Command: []string{"make", "all"}},
			expected: []string{"make", "all"},
		},
		{
			name:     "quoted command line",
			compile:  config.CompileConfig{CommandLine: `javac -d "{output}" -encoding 'UTF-8' src/Main.java`},
			expected: []string{"javac", "-d", "{output}", "-encoding", "UTF-8", "src/Main.java"},
		},
		{
			name:    "empty",
			compile: config.CompileConfig{},
		},
		{
			name:    "blank command line",
			compile: config.CompileConfig{CommandLine: "   "},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			args, err := tc.compile.Args()
			if tc.expected == nil {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, args)
		})
	}
}
