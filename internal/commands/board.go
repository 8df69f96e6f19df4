package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/tui"
)

func newBoardCmd(opts *rootOptions) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Live board of shifts grouped by status",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			load := func(ctx context.Context) ([]models.Shift, error) {
				return a.store.ListShifts(ctx, models.ListOptions{})
			}
			return tui.RunBoardTUI(load, refresh)
		}),
	}

	cmd.Flags().DurationVar(&refresh, "refresh", tui.DefaultRefresh, "reload interval")
	return cmd
}
