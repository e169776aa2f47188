// Package main implements campusctl, the operator CLI for campusd: offline
// index builds, local queries, data import and an interactive chat console.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/campusd/internal/config"
	"github.com/fyrsmithlabs/campusd/internal/logging"
)

var (
	// serverURL is the base URL for the campusd HTTP server
	serverURL string
	// configPath overrides the default config file location
	configPath string
	verbose    bool
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "campusctl",
	Short: "Operator CLI for campusd",
	Long: `campusctl builds and inspects the campusd chunk index, imports campus
datasets into Postgres and talks to a running campusd server.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "campusd server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.config/campusd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(healthCmd)
}

// loadConfig reads .env, the config file and CAMPUSD_* variables.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	return config.LoadWithFile(configPath)
}

// newLogger returns a console logger; only warnings are shown unless verbose.
func newLogger() (*logging.Logger, error) {
	cfg := logging.NewDefaultConfig()
	cfg.Format = "console"
	cfg.Caller.Enabled = false
	cfg.Level = zapcore.WarnLevel
	if verbose {
		cfg.Level = zapcore.InfoLevel
	}
	return logging.NewLogger(cfg, nil)
}
