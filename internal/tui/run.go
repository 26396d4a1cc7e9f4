package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"mbsuggest/internal/logger"
	"mbsuggest/internal/suggest"
)

// Run shows the dialog until the user saves or closes it. Console logging is
// silenced while the dialog owns the terminal.
func Run(ctx context.Context, session *suggest.Session, label string, log *logger.Logger) (bool, error) {
	log.SetQuiet(true)
	defer log.SetQuiet(false)

	m := New(ctx, session, label)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		session.Close()
		return false, fmt.Errorf("suggestion dialog failed: %w", err)
	}
	return m.Saved(), nil
}
