package main

import (
	"fmt"
	"os"

	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley is a signal-driven conversation engine for LLM agents",
	Long: `Parley runs conversations through a fixed chain of signal handlers:
the model may think, call tools and observe their results, and every turn
ends in a response. Conversations persist in memory, files, SQLite or Redis.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default ./parley.yaml or .parley/parley.yaml)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("store", "file", "Store backend: memory, file, redis, sqlite")
	flags.String("store-path", config.DefaultStorePath, "Directory (file) or database path (sqlite)")
	flags.String("tools", config.DefaultToolsPath, "Process tools file")
	flags.Int("max-steps", 32, "Signals a single turn may emit")
	flags.Int("max-input-size", 4096, "Byte limit of one message or signal payload")
}

// loadConfig resolves configuration for cmd: flags, then PARLEY_* env, then file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path, cmd.Flags())
}

// newApp loads configuration and builds the application for cmd.
func newApp(cmd *cobra.Command, opts ...cli.AppOption) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(cfg, opts...)
}
