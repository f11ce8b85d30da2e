package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/filepay-go/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg := config.DefaultConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
