package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunBoardTUI shows the live shift board until the user quits
func RunBoardTUI(load LoadFunc, refresh time.Duration) error {
	p := tea.NewProgram(NewBoardModel(load, refresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
