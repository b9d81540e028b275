package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safeops-labs/lawsuggest/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lawsuggest",
	Short: "Workplace-safety statute suggestion engine",
	Long:  "Recommends Korean workplace-safety statute articles for incident descriptions by combining full-text retrieval with rule-based accident-type matching.",
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
