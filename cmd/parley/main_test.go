package main

import (
	"bytes"
	"testing"

	"github.com/aretw0/parley"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "parley version "+parley.Version+"\n", out.String())
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"chat", "serve", "mcp", "session", "tools", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	cmd, _, err := rootCmd.Find([]string{"session", "inspect"})
	require.NoError(t, err)
	assert.Equal(t, "inspect", cmd.Name())
}

func TestToolsCommand_MemoryStore(t *testing.T) {
	t.Chdir(t.TempDir())
	rootCmd.SetArgs([]string{"tools", "--store", "memory", "--log-level", "error"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.NoError(t, rootCmd.Execute())
}
