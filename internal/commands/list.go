package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/parser"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		statuses   string
		from, to   string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List shifts",
		Long: `List shifts ordered by start time, optionally filtered by status and start window.

Examples:
  evshift ls
  evshift ls --status pending,late
  evshift ls --from today --to "in 7 days" --json`,
		Args: cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			now := time.Now()
			listOpts := models.ListOptions{Limit: limit}

			for _, raw := range strings.Split(statuses, ",") {
				if strings.TrimSpace(raw) == "" {
					continue
				}
				status, ok := parseStatusFlag(raw)
				if !ok {
					return fmt.Errorf("unknown status '%s'", raw)
				}
				listOpts.Statuses = append(listOpts.Statuses, status)
			}

			var err error
			if listOpts.From, err = parseWindowFlag(from, now); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if listOpts.To, err = parseWindowFlag(to, now); err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			shifts, err := a.store.ListShifts(cmd.Context(), listOpts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if shifts == nil {
					shifts = []models.Shift{}
				}
				return printJSON(out, shifts)
			}
			if len(shifts) == 0 {
				fmt.Fprintln(out, "No shifts found. Use 'evshift shift add --start <time>' to create one.")
				return nil
			}
			printShiftTable(out, shifts, now)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&statuses, "status", "s", "", "comma-separated statuses (pending, late, scheduled, in_progress, completed, cancelled)")
	cmd.Flags().StringVar(&from, "from", "", "only shifts starting at or after this time (\"today\" for midnight)")
	cmd.Flags().StringVar(&to, "to", "", "only shifts starting before this time")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of shifts")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
	return cmd
}

// statusAliases are the short names accepted on the command line
var statusAliases = map[string]models.Status{
	"pending": models.StatusPendingAssignment,
	"late":    models.StatusLateAssignment,
	"active":  models.StatusInProgress,
	"done":    models.StatusCompleted,
}

func parseStatusFlag(raw string) (models.Status, bool) {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status, true
	}
	return models.ParseStatus(raw)
}

func parseWindowFlag(raw string, now time.Time) (*time.Time, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "today") {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &midnight, nil
	}
	return parser.ParseShiftTime(raw, now)
}
