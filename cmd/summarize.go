package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/thread-intel/internal/llm"
	"github.com/sells-group/thread-intel/internal/summarize"
)

var (
	summarizeTenant string
	summarizeBatch  int
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Write two-line summaries for messages that lack one",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		completer, err := llm.New(cfg)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := summarize.New(st, completer, summarizeBatch, cfg.Batch.MaxConcurrency).Run(ctx, summarizeTenant)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeTenant, "tenant", "", "tenant (mailbox owner) id")
	summarizeCmd.Flags().IntVar(&summarizeBatch, "batch", 20, "messages fetched per page")
	_ = summarizeCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(summarizeCmd)
}
