// Package config loads the parley CLI configuration from a YAML file,
// PARLEY_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides: engine.max_steps is PARLEY_ENGINE_MAX_STEPS.
	EnvPrefix = "PARLEY"

	DefaultStorePath = ".parley/conversations"
	DefaultToolsPath = "tools.yaml"
	DefaultAddr      = ":8080"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Store  StoreConfig  `mapstructure:"store"`
	Tools  ToolsConfig  `mapstructure:"tools"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type EngineConfig struct {
	MaxSteps      int           `mapstructure:"max_steps"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
	HistoryWindow int           `mapstructure:"history_window"`
	MaxHistory    int           `mapstructure:"max_history"`
	MaxThoughts   int           `mapstructure:"max_thoughts"`
	SystemPrompt  string        `mapstructure:"system_prompt"`
	// MaxInputSize is the byte limit of one user message or signal payload.
	MaxInputSize int `mapstructure:"max_input_size"`
}

type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	Redis   RedisConfig `mapstructure:"redis"`
	// EncryptionKey is a 32-byte AES key in hex or base64. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`
	MaskPII       bool   `mapstructure:"mask_pii"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ToolsConfig struct {
	Path    string   `mapstructure:"path"`
	Allow   []string `mapstructure:"allow"`
	Builtin bool     `mapstructure:"builtin"`
	Confirm bool     `mapstructure:"confirm"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FlagKeys maps command line flags to the configuration keys they override.
var FlagKeys = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"store":          "store.backend",
	"store-path":     "store.path",
	"tools":          "tools.path",
	"max-steps":      "engine.max_steps",
	"max-input-size": "engine.max_input_size",
	"addr":           "server.addr",
}

// Load reads configuration. With an empty path it looks for parley.yaml in the
// working directory and in .parley/; a missing file is not an error then.
// Flags in fs named in FlagKeys take precedence over every other source when set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(".parley")
		v.SetConfigName("parley")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_steps", 32)
	v.SetDefault("engine.timeout", 2*time.Minute)
	v.SetDefault("engine.tool_timeout", 30*time.Second)
	v.SetDefault("engine.history_window", 0)
	v.SetDefault("engine.max_history", 0)
	v.SetDefault("engine.max_thoughts", 0)
	v.SetDefault("engine.system_prompt", "You are a helpful assistant.")
	v.SetDefault("engine.max_input_size", 4096)

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "parley:conversation:")
	v.SetDefault("store.redis.ttl", time.Duration(0))
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.mask_pii", false)

	v.SetDefault("tools.path", DefaultToolsPath)
	v.SetDefault("tools.allow", []string{})
	v.SetDefault("tools.builtin", true)
	v.SetDefault("tools.confirm", false)

	v.SetDefault("server.addr", DefaultAddr)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Engine.MaxSteps < 0 {
		return fmt.Errorf("engine.max_steps must not be negative, got %d", c.Engine.MaxSteps)
	}
	if c.Engine.MaxInputSize < 1 {
		return fmt.Errorf("engine.max_input_size must be positive, got %d", c.Engine.MaxInputSize)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
