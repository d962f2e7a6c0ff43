package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/thread-intel/internal/ingest"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a tenant's threads and messages from a YAML or JSON fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fx, err := ingest.LoadFile(ingestFile)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := ingest.NewLoader(st).Ingest(ctx, fx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "fixture file")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
