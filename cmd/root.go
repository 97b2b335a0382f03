package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ptigroup/deepfin-sub000/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "deepfin",
	Short: "Financial statement extraction and consolidation",
	Long: `deepfin turns annual-report PDFs into multi-year financial statements.

  detect       show which pages hold each statement
  parse        parse one statement from extracted page text into line items
  consolidate  merge parsed statements of one type across filings
  run          detect, parse and consolidate the filings of a manifest
  runs         inspect pipeline run history

Amounts stay exact decimals in JSON output.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
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
