package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/thread-intel/internal/analyze"
	"github.com/sells-group/thread-intel/internal/jobs"
	"github.com/sells-group/thread-intel/internal/llm"
	"github.com/sells-group/thread-intel/internal/stage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker that executes thread analysis jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		completer, err := llm.New(cfg)
		if err != nil {
			return err
		}
		engine := analyze.New(st, stage.NewTracker(st), completer, analyzeConfig(cfg))

		tc, err := jobs.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer tc.Close()

		w := jobs.NewWorker(tc, cfg.Temporal.TaskQueue, cfg.Batch.MaxConcurrency, engine)
		zap.L().Info("starting worker",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
