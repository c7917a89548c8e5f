package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := runCLI(t, "completion", shell)
			require.NoError(t, err)
			assert.Contains(t, out, "webuictl")
		})
	}
}

func TestCompleteServerNames(t *testing.T) {
	_, path := setupCLI(t, testConfigYAML)
	cfgFile = path

	names, directive := completeServerNames(restartCmd, nil, "")
	assert.Equal(t, []string{"gpu-1", "gpu-2"}, names)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	names, _ = completeServerNames(restartCmd, []string{"gpu-1"}, "")
	assert.Empty(t, names, "restart takes one server")

	names, _ = completeServerNames(downloadCmd, []string{"https://e/m.ckpt"}, "")
	assert.Equal(t, []string{"gpu-1", "gpu-2"}, names)
}
