// Package main implements the intaked daemon and its one-shot tooling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/logging"
)

var (
	configPath string
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "intaked",
	Short: "Assignment email intake pipeline",
	Long: `intaked turns forensic engineering assignment emails into validated
structured records. Extraction falls back from cloud model to local model to
deterministic rules; every record passes a validation chain before exactly
one outcome is recorded: accepted, quarantined for review, or rejected.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/intaked/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(parseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration and builds the logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
