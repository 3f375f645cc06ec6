package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("fcodec", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(flagSet(t, "--schema", "schemas/geo.yaml"))
	require.NoError(t, err)
	require.Equal(t, Config{
		Schema:    "schemas/geo.yaml",
		Output:    ".",
		LockFile:  "schemas/geo.lock.yaml",
		LogLevel:  "info",
		LogFormat: "console",
	}, cfg)
	require.NoError(t, cfg.Validate())
}

func TestNoSchema(t *testing.T) {
	cfg, err := Load(flagSet(t))
	require.NoError(t, err)
	require.ErrorIs(t, cfg.Validate(), ErrNoSchema)
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "fcodec.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
schema: from-file.yaml
out: gen
package: filepkg
log-level: debug
`), 0o644))
	t.Setenv("FCODEC_PACKAGE", "envpkg")
	t.Setenv("FCODEC_LOG_FORMAT", "json")

	cfg, err := Load(flagSet(t, "--config", file, "-o", "flagdir"))
	require.NoError(t, err)
	require.Equal(t, "from-file.yaml", cfg.Schema)
	require.Equal(t, "flagdir", cfg.Output, "flags beat the file")
	require.Equal(t, "envpkg", cfg.Package, "env beats the file")
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "from-file.lock.yaml", cfg.LockFile)

	lc := cfg.Logging()
	require.Equal(t, "debug", lc.Level)
	require.Equal(t, "json", lc.Format)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(flagSet(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
}

func TestLockPath(t *testing.T) {
	require.Equal(t, "geo.lock.yaml", LockPath("geo.yaml"))
	require.Equal(t, "a/b/market.lock.yaml", LockPath("a/b/market.yml"))
	require.Equal(t, "plain.lock.yaml", LockPath("plain"))
}
