package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liber-ai/sommelier/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sommelier",
	Short: "Conversational wine recommendation service",
	Long:  "Serves a venue's wine catalog through a conversational sommelier: preference-driven filtering, a two-stage Claude pipeline for selection and prose, and a proposal log for analytics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
