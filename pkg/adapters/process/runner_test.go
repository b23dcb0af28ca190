package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunner_Execute(t *testing.T) {
	requireShell(t)
	runner := NewRunner()
	runner.Register("greet", "sh", "-c", "echo hello")
	runner.Register("echo_stdin", "sh", "-c", "cat")
	runner.Register("env_arg", "sh", "-c", "printf %s \"$PARLEY_ARG_CITY_NAME\"")
	runner.Register("fail", "sh", "-c", "echo broken >&2; exit 3")
	ctx := context.Background()

	t.Run("Executes Registered Command", func(t *testing.T) {
		out, err := runner.Execute(ctx, "greet", nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("Passes Arguments As JSON On Stdin", func(t *testing.T) {
		out, err := runner.Execute(ctx, "echo_stdin", map[string]any{"text": "hi", "n": 2})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"text": "hi", "n": float64(2)}, out)
	})

	t.Run("Passes Scalars Via Env Vars", func(t *testing.T) {
		out, err := runner.Execute(ctx, "env_arg", map[string]any{"city-name": "Lisbon"})
		require.NoError(t, err)
		assert.Equal(t, "Lisbon", out)
	})

	t.Run("Reports Stderr On Failure", func(t *testing.T) {
		_, err := runner.Execute(ctx, "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Execute(ctx, "hacker_script", nil)
		assert.ErrorIs(t, err, ErrNotRegistered)
	})
}

func TestRunner_Timeout(t *testing.T) {
	requireShell(t)
	runner := NewRunner(WithRegistry(map[string]ProcessConfig{
		"slow": {Command: "sh", Args: []string{"-c", "sleep 5"}, Timeout: "50ms"},
	}))

	start := time.Now()
	_, err := runner.Execute(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLoadTools_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: word_count
    description: Counts the words of a text
    command: sh
    args: ["-c", "wc -w"]
    timeout: 2s
    parameters:
      type: object
      required: [text]
      properties:
        text:
          type: string
  - name: ""
    command: ignored
`), 0o644))

	cfgs, err := LoadTools(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)

	wc := cfgs["word_count"]
	assert.Equal(t, "sh", wc.Command)
	d, err := wc.ParsedTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	tools, err := NewRunner(WithRegistry(cfgs)).Tools()
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "word_count", tools[0].Name)
	require.NotNil(t, tools[0].Parameters)
	assert.Equal(t, []string{"text"}, tools[0].Parameters.Required)
}

func TestLoadTools_JSONAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tools":[{"name":"up","command":"uptime"}]}`), 0o644))

	cfgs, err := LoadTools(path)
	require.NoError(t, err)
	assert.Contains(t, cfgs, "up")

	cfgs, err = LoadTools(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfgs)
}

func TestLoadTools_BadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  - name: x\n    command: sh\n    timeout: soon\n"), 0o644))

	_, err := LoadTools(path)
	assert.Error(t, err)
}

func TestTools_ExecuteThroughRegistry(t *testing.T) {
	requireShell(t)
	runner := NewRunner()
	runner.Register("shout", "sh", "-c", `printf '{"upper": "%s"}' "$(printf %s "$PARLEY_ARG_TEXT" | tr a-z A-Z)"`)

	tools, err := runner.Tools()
	require.NoError(t, err)
	require.Len(t, tools, 1)

	out, err := tools[0].Execute(context.Background(), map[string]any{"text": "quiet"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"upper": "QUIET"}, out)
}
