package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/thread-intel/internal/export"
)

var (
	exportTenant string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a tenant's next steps and feature requests to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := export.WriteFile(ctx, st, exportTenant, exportOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d next steps, %d feature requests\n",
			exportOut, counts.NextSteps, counts.FeatureRequests)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "tenant (mailbox owner) id")
	exportCmd.Flags().StringVar(&exportOut, "out", "insights.xlsx", "output workbook path")
	_ = exportCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(exportCmd)
}
