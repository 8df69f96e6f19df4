package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/parser"
)

func newShiftCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Create and manage shifts",
	}
	cmd.AddCommand(
		newShiftAddCmd(opts),
		newShiftAssignCmd(opts),
		newShiftCancelCmd(opts),
		newShiftEndCmd(opts),
		newShiftRemoveCmd(opts),
		newShiftShowCmd(opts),
	)
	return cmd
}

func newShiftAddCmd(opts *rootOptions) *cobra.Command {
	var (
		start, end, shiftType, assignee, staff, techs, note string
		appointment                                         uint
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a shift",
		Long: `Create a shift. Without an assignee it starts PENDING_ASSIGNMENT; with an
assignee it starts SCHEDULED and needs an end time.

Times: dd/mm/yyyy HH:MM, dd/mm/yyyy, HH:MM, now, in N minutes|hours|days, RFC 3339

Examples:
  evshift shift add --start "16/06/2025 08:00" --end "16/06/2025 12:00"
  evshift shift add --start "in 2 hours" --end "in 6 hours" --assignee emp-42 --tech ev-1,ev-2
  evshift shift add --start 14:00 --appointment 981 --note "battery swap"`,
		Args: cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			now := time.Now()
			startTime, err := parser.ParseShiftTime(start, now)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if startTime == nil {
				return fmt.Errorf("--start is required")
			}
			endTime, err := parser.ParseShiftTime(end, now)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			codes, err := parser.ParseTechnicianCodes(techs)
			if err != nil {
				return fmt.Errorf("--tech: %w", err)
			}

			req := models.CreateShiftRequest{
				AssigneeID:      assignee,
				StaffID:         optional(staff),
				TechnicianCodes: codes,
				ShiftType:       shiftType,
				StartTime:       *startTime,
				EndTime:         endTime,
				Notes:           note,
			}
			if cmd.Flags().Changed("appointment") {
				req.AppointmentID = &appointment
			}

			shift, err := a.store.CreateShift(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ Created shift #%d (%s)\n", shift.ID, shift.Status)
			printShiftDetails(out, shift, now)
			return nil
		}),
	}

	cmd.Flags().StringVar(&start, "start", "", "start time (required)")
	cmd.Flags().StringVar(&end, "end", "", "end time")
	cmd.Flags().StringVar(&shiftType, "type", "", "shift type: booking or standalone (default from --appointment)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assign at creation")
	cmd.Flags().StringVar(&staff, "staff", "", "staff reference")
	cmd.Flags().StringVar(&techs, "tech", "", "comma-separated technician codes")
	cmd.Flags().UintVar(&appointment, "appointment", 0, "customer appointment id")
	cmd.Flags().StringVar(&note, "note", "", "notes")
	return cmd
}

func newShiftAssignCmd(opts *rootOptions) *cobra.Command {
	var assignee, staff, techs, end string

	cmd := &cobra.Command{
		Use:   "assign <shift-id>",
		Short: "Assign a pending, late or scheduled shift",
		Long: `Assign a shift and move it to SCHEDULED. The shift needs an end time,
either already stored or given with --end.

Examples:
  evshift shift assign 12 --assignee emp-42
  evshift shift assign 12 --assignee emp-42 --tech ev-3 --end "in 4 hours"`,
		Args: cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseShiftID(args[0])
			if err != nil {
				return err
			}
			now := time.Now()
			endTime, err := parser.ParseShiftTime(end, now)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			codes, err := parser.ParseTechnicianCodes(techs)
			if err != nil {
				return fmt.Errorf("--tech: %w", err)
			}

			shift, err := a.store.AssignShift(cmd.Context(), id, models.AssignRequest{
				AssigneeID:      assignee,
				StaffID:         optional(staff),
				TechnicianCodes: codes,
				EndTime:         endTime,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "👷 Assigned shift #%d to %s (%s)\n", shift.ID, shift.AssigneeID, shift.Status)
			printShiftDetails(out, shift, now)
			return nil
		}),
	}

	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee id (required)")
	cmd.Flags().StringVar(&staff, "staff", "", "staff reference")
	cmd.Flags().StringVar(&techs, "tech", "", "comma-separated technician codes, replaces the current ones")
	cmd.Flags().StringVar(&end, "end", "", "end time")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func newShiftCancelCmd(opts *rootOptions) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "cancel <shift-id>",
		Short: "Cancel a shift that has not finished",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseShiftID(args[0])
			if err != nil {
				return err
			}
			shift, err := a.store.CancelShift(cmd.Context(), id, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✗ Cancelled shift #%d\n", shift.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&note, "note", "", "reason, appended to the notes")
	return cmd
}

func newShiftEndCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "end <shift-id> <time>",
		Short: "Set or move the end time of a shift",
		Long: `Set the end time of a shift that has not finished. An in-progress shift
completes on the first reconciliation pass after the new end time.

Examples:
  evshift shift end 12 "in 30 minutes"
  evshift shift end 12 17:30`,
		Args: cobra.ExactArgs(2),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseShiftID(args[0])
			if err != nil {
				return err
			}
			now := time.Now()
			end, err := parser.ParseShiftTime(args[1], now)
			if err != nil {
				return err
			}
			if end == nil {
				return fmt.Errorf("end time is required")
			}
			shift, err := a.store.SetEndTime(cmd.Context(), id, *end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🕔 Shift #%d now ends %s (%.2fh)\n",
				shift.ID, parser.FormatShiftTime(shift.EndTime, now), shift.TotalHours)
			return nil
		}),
	}
}

func newShiftRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <shift-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a shift",
		Args:    cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseShiftID(args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteShift(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑  Deleted shift #%d\n", id)
			return nil
		}),
	}
}

func newShiftShowCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <shift-id>",
		Short: "Show one shift",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseShiftID(args[0])
			if err != nil {
				return err
			}
			shift, err := a.store.GetShift(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, shift)
			}
			fmt.Fprintf(out, "%s Shift #%d  %s\n", statusIcon(shift.Status), shift.ID, shift.Status)
			printShiftDetails(out, shift, time.Now())
			return nil
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
	return cmd
}

func parseShiftID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid shift ID '%s'", raw)
	}
	return uint(id), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
