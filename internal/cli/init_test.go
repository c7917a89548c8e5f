package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
)

func TestInit_WritesTemplate(t *testing.T) {
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	require.NoError(t, Init(&out, InitOptions{NonInteractive: true}))

	data, err := os.ReadFile(config.ConfigFileName)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# webuictl configuration")
	assert.Contains(t, out.String(), "Wrote "+config.ConfigFileName)
}

func TestInit_ExistingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(config.ConfigFileName, []byte("servers: []\n"), 0600))

	t.Run("non-interactive refuses", func(t *testing.T) {
		err := Init(&bytes.Buffer{}, InitOptions{NonInteractive: true})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
		assert.Contains(t, err.Error(), "--force")

		data, _ := os.ReadFile(config.ConfigFileName)
		assert.Equal(t, "servers: []\n", string(data))
	})

	t.Run("force overwrites", func(t *testing.T) {
		require.NoError(t, Init(&bytes.Buffer{}, InitOptions{Overwrite: true, NonInteractive: true}))

		data, _ := os.ReadFile(config.ConfigFileName)
		assert.Contains(t, string(data), "# webuictl configuration")
	})
}

func TestInit_Global(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, Init(&bytes.Buffer{}, InitOptions{Global: true, NonInteractive: true}))

	path := filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestInitCommand_ThenList(t *testing.T) {
	setupCLI(t, testConfigYAML)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, err := runCLI(t, "init")
	require.NoError(t, err)

	out, err := runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "gpu-1: ")
}
