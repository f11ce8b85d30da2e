package main

import (
	"errors"
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/filepay-go/config"
)

var log = logging.Logger("filepay/cmd")

var (
	configPath string
	dataDir    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "filepayd",
	Short: "filepay - escrowed payments for content-addressed storage",
	Long: "filepayd registers files, holds storage payments in escrow until the\n" +
		"provider confirms the content is stored, and gates retrieval behind\n" +
		"short-lived capability tokens.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.filepay)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveConfigPath applies the --config and --data-dir flags.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	dir := dataDir
	if dir == "" {
		dir = config.DefaultDataDir()
	}
	return config.ConfigPath(dir)
}

// loadConfig reads and validates the configuration. A missing file yields
// the defaults so that a fresh install serves out of the box.
func loadConfig() (config.Config, error) {
	path := resolveConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// setupLogging applies the configured level and optional log file.
func setupLogging(cfg config.Config) error {
	level, err := logging.LevelFromString(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return err
	}
	lc := logging.GetConfig()
	lc.Level = level
	if cfg.LogFile != "" {
		lc.File = cfg.LogFile
		lc.Stderr = false
	}
	logging.SetupLogging(lc)
	return nil
}
