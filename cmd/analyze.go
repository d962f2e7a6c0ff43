package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/thread-intel/internal/model"
)

var analyzeTenant string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <thread-id>",
	Short: "Analyze one thread in-process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report := env.Analyzer.Analyze(ctx, analyzeTenant, args[0])
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		return reportError(report)
	},
}

func reportError(r *model.AnalysisReport) error {
	if r.Success {
		return nil
	}
	if len(r.Errors) > 0 {
		return eris.Errorf("analyze: thread %s: %s", r.ThreadID, r.Errors[0])
	}
	return eris.Errorf("analyze: thread %s failed", r.ThreadID)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTenant, "tenant", "", "tenant (mailbox owner) id")
	_ = analyzeCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(analyzeCmd)
}
