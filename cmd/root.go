package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "thread-intel",
	Short: "Email thread resolution and analysis pipeline",
	Long:  "Resolves email thread participants into customers and companies, queues threads for analysis, and extracts summaries, sentiment, next steps and feature requests with an LLM.",
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
