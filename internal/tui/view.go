package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"mbsuggest/internal/suggest"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("252")).
		Background(lipgloss.Color("236")).
		Bold(false)
	return s
}

// View renders the dialog.
func (m *Model) View() string {
	if m.closed || m.saved {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(suggest.MenuLabel))
	b.WriteString("\n")
	if m.label != "" {
		b.WriteString(labelStyle.Render(m.label))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch m.session.State() {
	case suggest.StateLoading:
		b.WriteString(m.spinner.View() + " Searching MusicBrainz...")
		b.WriteString("\n")
	case suggest.StateShowing:
		b.WriteString(labelStyle.Render(suggest.InstructionLabel))
		b.WriteString("\n\n")
		if len(m.table.Rows()) == 0 {
			b.WriteString(dimStyle.Render("No suggestions found."))
			b.WriteString("\n")
		} else {
			b.WriteString(m.table.View())
			b.WriteString("\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.notice))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("press any key"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter/s save • ↑/↓ move • r search again • esc close"))
	return b.String()
}
