package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/storage"
)

func chdir(t *testing.T, dir string) {
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(old)
	})
}

func TestParseFull(t *testing.T) {
	t.Setenv(storage.DefaultRootEnv, "")
	cfg, err := Parse(strings.NewReader(`
root = "/var/lib/oxide"

[server]
host = "0.0.0.0"
port = 9000
`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/var/lib/oxide"), cfg.Root)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
}

func TestParseDefaults(t *testing.T) {
	t.Setenv(storage.DefaultRootEnv, "")
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "oxide_db", cfg.Root)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(storage.DefaultRootEnv, "/env/root")
	cfg, err := Parse(strings.NewReader(`root = "/file/root"`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/env/root"), cfg.Root)
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	_, err := Parse(strings.NewReader("root = ["))
	assert.Error(t, err)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	t.Setenv(storage.DefaultRootEnv, "")
	chdir(t, t.TempDir())
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "oxide_db", cfg.Root)
}
