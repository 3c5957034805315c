package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Risk probability, relevance and exposure scoring",
	Long:  "Fetches external risk signals, computes calibrated probabilities per risk event, ranks risks by client relevance, selects critical processes and aggregates monetary exposure.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
