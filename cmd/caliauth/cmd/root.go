package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/calisound/caliauth/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "caliauth",
	Short: "CALI Sound admin authentication service",
	Long: `Password and TOTP authentication for the CALI Sound admin area.
Configuration is read from .env files and CALI_* environment variables.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Environment files to load before reading CALI_* variables")
}

// loadConfig reads and validates the configuration and builds the process
// logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger(cmd.ErrOrStderr())
	if err := cfg.Validate(logger); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}
