package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mbsuggest/internal/logger"
	"mbsuggest/internal/track"
)

// Row is one display line of the suggestion list.
type Row struct {
	Score       int
	Artist      string
	Title       string
	Album       string
	AlbumType   string // empty when the release has no type
	TrackNumber int
}

// Fields returns the six display columns in order.
func (r Row) Fields() []string {
	return []string{
		strconv.Itoa(r.Score),
		r.Artist,
		r.Title,
		r.Album,
		r.AlbumType,
		strconv.Itoa(r.TrackNumber),
	}
}

// Selection returns the four values written back when r is saved.
func (r Row) Selection() Selection {
	return Selection{
		Artist:      r.Artist,
		Title:       r.Title,
		Album:       r.Album,
		TrackNumber: strconv.Itoa(r.TrackNumber),
	}
}

// Selection holds the tag values written to a track.
type Selection struct {
	Artist      string
	Title       string
	Album       string
	TrackNumber string
}

var typeNamePattern = regexp.MustCompile(`^\w+`)

// AlbumType extracts the type name from the first identifier in types, the
// run of word characters following its last '#'. An empty list yields "".
func AlbumType(types []string) (string, error) {
	if len(types) == 0 {
		return "", nil
	}
	id := types[0]
	i := strings.LastIndex(id, "#")
	if i < 0 {
		return "", fmt.Errorf("%w in %q", ErrPatternNotFound, id)
	}
	name := typeNamePattern.FindString(id[i+1:])
	if name == "" {
		return "", fmt.Errorf("%w in %q", ErrPatternNotFound, id)
	}
	return name, nil
}

// MapRows converts candidates into display rows, keeping their order.
// Candidates without any release are skipped. An unrecognised type
// identifier is logged and leaves the album type empty.
func MapRows(cands []Candidate, log *logger.Logger) []Row {
	rows := make([]Row, 0, len(cands))
	for i, c := range cands {
		if len(c.Releases) == 0 {
			log.Warn("Skipping candidate %d (%q by %q): no release", i+1, c.Title, c.Artist.Name)
			continue
		}
		rel := c.Releases[0]

		albumType, err := AlbumType(rel.Types)
		if err != nil {
			log.Warn("Candidate %d (%q): %v", i+1, c.Title, err)
			albumType = ""
		}

		rows = append(rows, Row{
			Score:       c.Score,
			Artist:      c.Artist.Name,
			Title:       c.Title,
			Album:       rel.Title,
			AlbumType:   albumType,
			TrackNumber: rel.TracksOffset + 1,
		})
	}
	return rows
}

// WriteSelection replaces the artist, title, album and track number tags of t
// with single values from sel, then persists them.
func WriteSelection(t track.Track, sel Selection) error {
	t.SetTag(track.Artist, []string{sel.Artist})
	t.SetTag(track.Title, []string{sel.Title})
	t.SetTag(track.Album, []string{sel.Album})
	t.SetTag(track.TrackNumber, []string{sel.TrackNumber})
	return t.WriteTags()
}
