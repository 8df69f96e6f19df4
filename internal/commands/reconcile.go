package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balkashynov/evshift/internal/reconciler"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass now",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			rec := reconciler.New(a.store,
				reconciler.WithLogger(a.logger),
				reconciler.WithWorkers(a.cfg.Reconciler.Workers),
			)
			report, err := rec.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, report)
			}

			fmt.Fprintf(out, "🔄 Examined %d shifts: %d transitioned, %d skipped (changed meanwhile), %d errored\n",
				report.Examined, report.Transitioned, report.Conflicts, report.Errored)
			for _, t := range report.Transitions {
				fmt.Fprintf(out, "  #%d %s → %s\n", t.ShiftID, t.From, t.To)
			}
			if report.Errored > 0 {
				return fmt.Errorf("%d shifts could not be reconciled, see log", report.Errored)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the pass report as JSON")
	return cmd
}
