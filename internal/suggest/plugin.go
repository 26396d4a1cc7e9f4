// Package suggest holds the plugin context and the suggestion dialog session:
// the state machine that drives a search, shows its rows and writes the
// selected one back onto the host's track.
package suggest

import (
	"github.com/mattn/go-runewidth"

	"mbsuggest/internal/logger"
	"mbsuggest/internal/metadata"
	"mbsuggest/internal/track"
)

// User-facing strings.
const (
	MenuLabel        = "Fill tags with MusicBrainz suggestions"
	InstructionLabel = `Select one suggestion and press "Save" to fill in the tags`
	ServiceErrorText = "Error, getting tracks suggestions. \nPlease, check your connection and try again."
	NoSelectionText  = "You need to select a suggestion."
)

// Column describes one column of the suggestion list.
type Column struct {
	Title string
	Width int // relative width
}

// Columns are the six display columns, matching metadata.Row.Fields.
var Columns = []Column{
	{"Score", 40},
	{"Artist", 200},
	{"Title", 250},
	{"Album", 250},
	{"Album Type", 80},
	{"Track #", 50},
}

// ColumnWidths spreads avail cells over Columns. Every column first gets
// room for its title (and never less than 3 cells); what is left is shared
// in proportion to the relative widths. The result exceeds avail only when
// avail cannot hold the titles.
func ColumnWidths(avail int) []int {
	widths := make([]int, len(Columns))
	total, used := 0, 0
	for i, c := range Columns {
		widths[i] = max(runewidth.StringWidth(c.Title), 3)
		used += widths[i]
		total += c.Width
	}

	if extra := avail - used; extra > 0 {
		for i, c := range Columns {
			widths[i] += c.Width * extra / total
		}
	}
	return widths
}

// Host exposes the track the user currently has selected.
type Host interface {
	SelectedTrack() (track.Track, error)
}

// HostFunc adapts a function to Host.
type HostFunc func() (track.Track, error)

func (f HostFunc) SelectedTrack() (track.Track, error) { return f() }

// Plugin is the context a host creates once and keeps for as long as the
// suggestion action is installed.
type Plugin struct {
	provider metadata.Provider
	host     Host
	logger   *logger.Logger
}

// New creates a Plugin searching provider for the tracks host selects.
func New(p metadata.Provider, host Host, log *logger.Logger) *Plugin {
	return &Plugin{provider: p, host: host, logger: log}
}

// NewSession opens a suggestion dialog session in the Idle state.
func (p *Plugin) NewSession() *Session {
	return &Session{
		provider: p.provider,
		host:     p.host,
		logger:   p.logger,
		selected: -1,
	}
}

// UserMessage returns the text to show the user for an error raised by a
// session.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsValidationError(err) {
		return err.Error()
	}
	if metadata.IsServiceError(err) {
		return ServiceErrorText
	}
	return err.Error()
}
