package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/evshift/internal/models"
	"github.com/balkashynov/evshift/internal/parser"
)

// DefaultRefresh is how often the board reloads shifts
const DefaultRefresh = 5 * time.Second

// LoadFunc fetches the shifts shown on the board
type LoadFunc func(ctx context.Context) ([]models.Shift, error)

// BoardModel is a live board of shifts grouped by status
type BoardModel struct {
	width  int
	height int

	load    LoadFunc
	refresh time.Duration
	now     func() time.Time

	// Data
	shifts     []models.Shift
	lastLoaded time.Time
	err        error
	loading    bool

	// UI state
	spinner      spinner.Model
	selected     int // index into visible()
	showTerminal bool
}

// shiftsLoadedMsg carries the result of a load
type shiftsLoadedMsg struct {
	shifts []models.Shift
	err    error
	at     time.Time
}

// refreshTickMsg is sent every refresh interval
type refreshTickMsg struct{}

// NewBoardModel creates a board that calls load every refresh
func NewBoardModel(load LoadFunc, refresh time.Duration) BoardModel {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentBright))

	return BoardModel{
		load:    load,
		refresh: refresh,
		now:     time.Now,
		spinner: s,
		loading: true,
	}
}

// Init starts the first load and the spinner
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m BoardModel) loadCmd() tea.Cmd {
	load, now := m.load, m.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shifts, err := load(ctx)
		return shiftsLoadedMsg{shifts: shifts, err: err, at: now()}
	}
}

func (m BoardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case shiftsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.shifts = msg.shifts
			m.lastLoaded = msg.at
		}
		m.clampSelection()
		// Schedule the next reload only after this one finished
		return m, m.tickCmd()

	case refreshTickMsg:
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.loadCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down", "j":
			if m.selected < len(m.visible())-1 {
				m.selected++
			}
			return m, nil

		case "t":
			m.showTerminal = !m.showTerminal
			m.clampSelection()
			return m, nil

		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.loadCmd()
		}
	}

	return m, nil
}

// boardOrder is the column order, lifecycle first
var boardOrder = []models.Status{
	models.StatusLateAssignment,
	models.StatusPendingAssignment,
	models.StatusScheduled,
	models.StatusInProgress,
	models.StatusCompleted,
	models.StatusCancelled,
}

// visible returns the shifts in display order
func (m BoardModel) visible() []models.Shift {
	var out []models.Shift
	for _, status := range boardOrder {
		if status.IsTerminal() && !m.showTerminal {
			continue
		}
		for _, s := range m.shifts {
			if s.Status == status {
				out = append(out, s)
			}
		}
	}
	return out
}

func (m *BoardModel) clampSelection() {
	n := len(m.visible())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// counts tallies shifts per status
func (m BoardModel) counts() map[models.Status]int {
	counts := make(map[models.Status]int, len(boardOrder))
	for _, s := range m.shifts {
		counts[s.Status]++
	}
	return counts
}

// View renders the board
func (m BoardModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	helpBar := m.renderHelpBar()

	rows := m.visible()
	var body string
	switch {
	case m.err != nil && len(m.shifts) == 0:
		body = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render("❌ " + m.err.Error())
	case len(rows) == 0 && !m.loading:
		body = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDisabledText)).Italic(true).Render("No shifts to show.")
	default:
		body = m.renderTable(rows)
	}

	// Wide terminals get a details panel next to the table
	if m.width >= 110 && len(rows) > 0 {
		details := m.renderDetails(rows[m.selected], m.width/3)
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", details)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", helpBar)
}

func (m BoardModel) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccentMain)).
		Bold(true).
		Render("EVSHIFT BOARD")

	counts := m.counts()
	var parts []string
	for _, status := range boardOrder {
		style := lipgloss.NewStyle().Foreground(statusColor(status))
		parts = append(parts, style.Render(fmt.Sprintf("%s %s %d", statusIcon(status), status, counts[status])))
	}

	state := ""
	if m.loading {
		state = m.spinner.View() + " refreshing"
	} else if !m.lastLoaded.IsZero() {
		state = "updated " + m.lastLoaded.Format("15:04:05")
	}
	if m.err != nil {
		state += lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render("  last refresh failed")
	}
	stateLine := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText)).Render(state)

	return lipgloss.JoinVertical(lipgloss.Left, title+"  "+stateLine, strings.Join(parts, "  "))
}

func (m BoardModel) renderTable(rows []models.Shift) string {
	now := m.now()
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText)).Bold(true)
	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorPrimaryText)).
		Background(lipgloss.Color(ColorBorder)).
		Bold(true)

	lines := []string{headerStyle.Render(fmt.Sprintf("%-6s %-20s %-16s %-16s %-14s %s", "ID", "STATUS", "START", "END", "ASSIGNEE", "NEXT"))}

	// Keep the selected row on screen
	maxRows := m.height - 8
	if maxRows < 3 {
		maxRows = 3
	}
	first := 0
	if m.selected >= maxRows {
		first = m.selected - maxRows + 1
	}

	for i := first; i < len(rows) && i < first+maxRows; i++ {
		s := rows[i]
		start := s.StartTime
		assignee := s.AssigneeID
		if assignee == "" {
			assignee = "-"
		}
		status := lipgloss.NewStyle().Foreground(statusColor(s.Status)).
			Render(fmt.Sprintf("%s %-18s", statusIcon(s.Status), s.Status))
		line := fmt.Sprintf("%-6d %s %-16s %-16s %-14s %s",
			s.ID, status,
			parser.FormatShiftTime(&start, now),
			parser.FormatShiftTime(s.EndTime, now),
			truncate(assignee, 14),
			nextChange(s, now),
		)
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}

// nextChange describes when the reconciler will next move the shift
func nextChange(s models.Shift, now time.Time) string {
	switch s.Status {
	case models.StatusPendingAssignment:
		return "late " + parser.FormatUntil(&s.StartTime, now)
	case models.StatusScheduled:
		return "starts " + parser.FormatUntil(&s.StartTime, now)
	case models.StatusInProgress:
		if s.EndTime == nil {
			return "no end time"
		}
		return "ends " + parser.FormatUntil(s.EndTime, now)
	case models.StatusLateAssignment:
		return "needs assignment"
	}
	return ""
}

func (m BoardModel) renderDetails(s models.Shift, width int) string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
	value := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPrimaryText))

	techs := strings.Join(s.TechnicianCodes(), ", ")
	if techs == "" {
		techs = "none"
	}
	staff := "-"
	if s.StaffID != nil {
		staff = *s.StaffID
	}
	appointment := "-"
	if s.AppointmentID != nil {
		appointment = fmt.Sprintf("#%d", *s.AppointmentID)
	}

	lines := []string{
		lipgloss.NewStyle().Foreground(statusColor(s.Status)).Bold(true).
			Render(fmt.Sprintf("%s Shift #%d", statusIcon(s.Status), s.ID)),
		"",
		label.Render("Type:        ") + value.Render(s.ShiftType),
		label.Render("Assignee:    ") + value.Render(orDash(s.AssigneeID)),
		label.Render("Staff:       ") + value.Render(staff),
		label.Render("Appointment: ") + value.Render(appointment),
		label.Render("Technicians: ") + value.Render(techs),
		label.Render("Hours:       ") + value.Render(fmt.Sprintf("%.2f", s.TotalHours)),
	}
	if s.Notes != "" {
		lines = append(lines, "", label.Render("Notes:"), value.Render(s.Notes))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccentMain)).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func (m BoardModel) renderHelpBar() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Italic(true).
		Render("↑/↓ select · t toggle finished · r refresh · q quit")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
