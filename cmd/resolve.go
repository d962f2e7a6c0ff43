package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/input"
)

var (
	resolveTenant string
	resolveFile   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [thread-id...]",
	Short: "Resolve thread participants and queue threads for analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ids := append([]string(nil), args...)
		if resolveFile != "" {
			fromFile, err := input.LoadThreadIDs(ctx, resolveFile)
			if err != nil {
				return err
			}
			ids = append(ids, fromFile...)
		}
		if len(ids) == 0 {
			return eris.New("resolve: no thread ids given (pass ids as arguments or --file)")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Resolver.Resolve(ctx, resolveTenant, ids)
		if err != nil {
			if report != nil {
				_ = printJSON(cmd.OutOrStdout(), report)
			}
			return err
		}
		zap.L().Info("resolve complete",
			zap.Int("processed", report.ProcessedCount),
			zap.Int("skipped", len(report.SkippedThreads)),
			zap.Int("jobs_triggered", report.JobsTriggered),
		)
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveTenant, "tenant", "", "tenant (mailbox owner) id")
	resolveCmd.Flags().StringVar(&resolveFile, "file", "", "CSV, XLSX or JSON file of thread ids")
	_ = resolveCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(resolveCmd)
}
