package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/thread-intel/internal/model"
	"github.com/sells-group/thread-intel/internal/monitoring"
	"github.com/sells-group/thread-intel/internal/stage"
)

var statusTenant string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-stage thread counts and check alert thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		checker := monitoring.NewChecker(
			monitoring.NewCollector(stage.NewTracker(st)),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		snap, alerts := checker.Check(ctx, statusTenant)
		if snap == nil {
			return eris.Errorf("status: could not collect stage counts for %s", statusTenant)
		}

		printStatus(cmd.OutOrStdout(), snap, alerts)
		return nil
	},
}

// printStatus writes the snapshot as text. Stages outside the known set are
// listed after the known ones and flagged so stray writes are visible.
func printStatus(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	fmt.Fprintf(out, "tenant %s: %d threads\n", snap.TenantID, snap.Total)
	for _, s := range model.Stages {
		fmt.Fprintf(out, "  %-22s %d\n", s, snap.Counts[s])
	}
	var unknown []model.Stage
	for s := range snap.Counts {
		if !s.IsKnown() {
			unknown = append(unknown, s)
		}
	}
	slices.Sort(unknown)
	for _, s := range unknown {
		fmt.Fprintf(out, "  %-22s %d (unknown stage)\n", s, snap.Counts[s])
	}
	fmt.Fprintf(out, "failure rate: %.1f%% (%d of %d finished)\n", snap.FailureRate*100, snap.Failed, snap.Finished())
	for _, a := range alerts {
		fmt.Fprintf(out, "ALERT %s: %s\n", a.Type, a.Message)
	}
}

func init() {
	statusCmd.Flags().StringVar(&statusTenant, "tenant", "", "tenant (mailbox owner) id")
	_ = statusCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(statusCmd)
}
