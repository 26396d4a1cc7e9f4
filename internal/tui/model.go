// Package tui provides the terminal suggestion dialog: a Bubble Tea model that
// drives a suggest.Session.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"mbsuggest/internal/suggest"
)

const defaultWidth = 100

// resultMsg carries a finished fetch back to the update loop.
type resultMsg suggest.Result

// Model is the Bubble Tea model for the suggestion dialog.
type Model struct {
	ctx     context.Context
	session *suggest.Session
	label   string // describes the selected track

	table   table.Model
	spinner spinner.Model

	// notice is a modal message dismissed by any key
	notice string

	width, height int
	saved         bool
	closed        bool
}

// New creates the dialog for session. label is shown in the header.
func New(ctx context.Context, session *suggest.Session, label string) *Model {
	t := table.New(
		table.WithColumns(scaleColumns(defaultWidth)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return &Model{
		ctx:     ctx,
		session: session,
		label:   label,
		table:   t,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
	}
}

// Saved reports whether the user saved a suggestion.
func (m *Model) Saved() bool { return m.saved }

// Closed reports whether the dialog was dismissed.
func (m *Model) Closed() bool { return m.closed }

// Init starts the first search.
func (m *Model) Init() tea.Cmd {
	return m.search()
}

func (m *Model) search() tea.Cmd {
	f, err := m.session.Begin(m.ctx)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	m.table.SetRows(nil)
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return resultMsg(f.Run())
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(scaleColumns(msg.Width))
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case resultMsg:
		return m.handleResult(suggest.Result(msg))
	case spinner.TickMsg:
		if m.session.State() != suggest.StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleResult(res suggest.Result) (tea.Model, tea.Cmd) {
	if !m.session.Deliver(res) {
		return m, nil
	}
	snap := m.session.Snapshot()
	if snap.State == suggest.StateError {
		m.notice = suggest.UserMessage(snap.Err)
		return m, nil
	}
	rows := make([]table.Row, len(snap.Rows))
	for i, r := range snap.Rows {
		rows[i] = table.Row(r.Fields())
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.close()
	}

	if m.notice != "" {
		m.notice = ""
		if m.session.State() == suggest.StateError {
			return m.close()
		}
		return m, nil
	}

	switch key {
	case "esc", "q":
		return m.close()
	case "r":
		return m, m.search()
	case "enter", "s":
		return m.save()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) save() (tea.Model, tea.Cmd) {
	if len(m.table.Rows()) > 0 {
		if err := m.session.Select(m.table.Cursor()); err != nil {
			m.notice = err.Error()
			return m, nil
		}
	}
	if err := m.session.Save(); err != nil {
		m.notice = suggest.UserMessage(err)
		return m, nil
	}
	m.saved = true
	return m, tea.Quit
}

func (m *Model) close() (tea.Model, tea.Cmd) {
	m.session.Close()
	m.table.SetRows(nil)
	m.closed = true
	return m, tea.Quit
}

// scaleColumns spreads width over the dialog columns in proportion to their
// relative widths.
func scaleColumns(width int) []table.Column {
	// cell padding
	widths := suggest.ColumnWidths(width - 2*len(suggest.Columns))

	cols := make([]table.Column, len(suggest.Columns))
	for i, c := range suggest.Columns {
		cols[i] = table.Column{Title: c.Title, Width: widths[i]}
	}
	return cols
}
