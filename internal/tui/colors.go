package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/evshift/internal/models"
)

// Color constants for the evshift board
const (
	ColorBorder = "#3A3F55" // Grey-blue

	ColorPrimaryText   = "#E6EAF2"
	ColorSecondaryText = "#B1B8C7"
	ColorDisabledText  = "#6D7383"
	ColorHelpText      = "240"

	ColorAccentMain   = "#0EA5E9" // Sky, logo and active borders
	ColorAccentBright = "#7DD3FC"

	ColorError   = "#EF4444"
	ColorSuccess = "#22C55E"
	ColorWarning = "#F59E0B"
)

// statusColor picks the accent for a status column
func statusColor(s models.Status) lipgloss.Color {
	switch s {
	case models.StatusPendingAssignment:
		return lipgloss.Color(ColorSecondaryText)
	case models.StatusLateAssignment:
		return lipgloss.Color(ColorError)
	case models.StatusScheduled:
		return lipgloss.Color(ColorAccentBright)
	case models.StatusInProgress:
		return lipgloss.Color(ColorWarning)
	case models.StatusCompleted:
		return lipgloss.Color(ColorSuccess)
	}
	return lipgloss.Color(ColorDisabledText)
}

func statusIcon(s models.Status) string {
	switch s {
	case models.StatusPendingAssignment:
		return "○"
	case models.StatusLateAssignment:
		return "⚠"
	case models.StatusScheduled:
		return "◷"
	case models.StatusInProgress:
		return "▶"
	case models.StatusCompleted:
		return "✓"
	case models.StatusCancelled:
		return "✗"
	}
	return "?"
}
