package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Engine.MaxSteps)
	assert.Equal(t, 4096, cfg.Engine.MaxInputSize)
	assert.Equal(t, 2*time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Engine.ToolTimeout)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.True(t, cfg.Tools.Builtin)
	assert.Empty(t, cfg.Tools.Allow)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_steps: 8
  timeout: 5s
  system_prompt: "Be brief."
store:
  backend: redis
  redis:
    addr: "redis:6379"
    db: 2
    ttl: 1h
tools:
  allow: [calculator, clock]
log:
  format: json
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Engine.MaxSteps)
	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "Be brief.", cfg.Engine.SystemPrompt)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, []string{"calculator", "clock"}, cfg.Tools.Allow)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep defaults
	assert.Equal(t, 30*time.Second, cfg.Engine.ToolTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PARLEY_ENGINE_MAX_STEPS", "4")
	t.Setenv("PARLEY_STORE_BACKEND", "sqlite")
	t.Setenv("PARLEY_SERVER_ADDR", ":9999")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.MaxSteps)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoad_DiscoversWorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parley.yaml"), []byte("store:\n  backend: memory\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "store:\n  backend: postgres\n"), nil)
	assert.ErrorContains(t, err, "unknown store backend")

	_, err = Load(writeConfig(t, "log:\n  format: xml\n"), nil)
	assert.ErrorContains(t, err, "unknown log format")

	_, err = Load(writeConfig(t, "engine:\n  max_steps: -1\n"), nil)
	assert.ErrorContains(t, err, "max_steps")

	_, err = Load(writeConfig(t, "engine:\n  max_input_size: 0\n"), nil)
	assert.ErrorContains(t, err, "max_input_size")
}

func TestLoad_MaxInputSizeFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PARLEY_ENGINE_MAX_INPUT_SIZE", "128")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Engine.MaxInputSize)
}

func TestLoad_FlagsWinOverEnvAndFile(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: file\nlog:\n  level: warn\n")
	t.Setenv("PARLEY_STORE_BACKEND", "redis")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("store", "", "")
	fs.String("log-level", "info", "")
	fs.Int("max-steps", 0, "")
	require.NoError(t, fs.Parse([]string{"--store", "memory", "--max-steps", "3"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Engine.MaxSteps)
	// unchanged flag defaults do not shadow the file
	assert.Equal(t, "warn", cfg.Log.Level)
}
