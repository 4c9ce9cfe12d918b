package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/junyi2022/Calgary-Portland-Inundation/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "flood-transfer",
	Short: "Cross-city flood inundation risk transfer",
	Long:  "Fits a spatial logistic regression on one city's mapped flood event and transfers it to an unmapped city via per-city feature normalization.",
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
