package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/parser"
)

func printShiftDetails(w io.Writer, shift *models.Shift, now time.Time) {
	fmt.Fprintf(w, "  Type: %s\n", shift.ShiftType)
	fmt.Fprintf(w, "  Start: %s\n", parser.FormatShiftTime(&shift.StartTime, now))
	if shift.EndTime != nil {
		fmt.Fprintf(w, "  End: %s (%.2fh)\n", parser.FormatShiftTime(shift.EndTime, now), shift.TotalHours)
	}
	if shift.AssigneeID != "" {
		fmt.Fprintf(w, "  Assignee: %s\n", shift.AssigneeID)
	}
	if shift.StaffID != nil {
		fmt.Fprintf(w, "  Staff: %s\n", *shift.StaffID)
	}
	if shift.AppointmentID != nil {
		fmt.Fprintf(w, "  Appointment: #%d\n", *shift.AppointmentID)
	}
	if codes := shift.TechnicianCodes(); len(codes) > 0 {
		fmt.Fprintf(w, "  Technicians: %s\n", strings.Join(codes, ", "))
	}
	if shift.Notes != "" {
		fmt.Fprintf(w, "  Notes: %s\n", strings.ReplaceAll(shift.Notes, "\n", " / "))
	}
}

func printShiftTable(w io.Writer, shifts []models.Shift, now time.Time) {
	fmt.Fprintf(w, "%-5s %-20s %-16s %-16s %-14s %-11s %s\n", "ID", "STATUS", "START", "END", "ASSIGNEE", "TYPE", "TECHNICIANS")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, s := range shifts {
		assignee := s.AssigneeID
		if assignee == "" {
			assignee = "-"
		}
		if len(assignee) > 14 {
			assignee = assignee[:11] + "..."
		}
		start := s.StartTime
		fmt.Fprintf(w, "%-5d %-20s %-16s %-16s %-14s %-11s %s\n",
			s.ID,
			statusIcon(s.Status)+" "+string(s.Status),
			parser.FormatShiftTime(&start, now),
			parser.FormatShiftTime(s.EndTime, now),
			assignee,
			s.ShiftType,
			strings.Join(s.TechnicianCodes(), ","))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusIcon(s models.Status) string {
	switch s {
	case models.StatusPendingAssignment:
		return "○"
	case models.StatusLateAssignment:
		return "⚠️"
	case models.StatusScheduled:
		return "📅"
	case models.StatusInProgress:
		return "🔧"
	case models.StatusCompleted:
		return "✅"
	case models.StatusCancelled:
		return "❌"
	}
	return "?"
}
