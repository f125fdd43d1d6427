package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "arqcashflow",
	Short: "Financial spreadsheet and document import",
	Long:  "Turns spreadsheets, CSVs, PDFs and images into contracts, receivables and expenses using layout analysis, model-assisted column mapping and deterministic value parsing.",
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
