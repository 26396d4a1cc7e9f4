package metadata

import (
	"strings"

	"mbsuggest/internal/track"
)

// TagReader is the part of a track the query builder needs.
type TagReader interface {
	Tag(name string) []string
}

// queryFields maps local tag names to remote search fields, in clause order.
var queryFields = []struct {
	tag   string
	field string
}{
	{track.Artist, "artist"},
	{track.Album, "release"},
	{track.TrackNumber, "tnum"},
	{track.Title, "track"},
}

// BuildQuery converts a track's tags into a field query such as
// "artist:(Muse) track:(Stockholm Syndrome)". Values are inserted verbatim.
// Tags that are absent or empty contribute nothing; a track without any of
// them yields "".
func BuildQuery(t TagReader) string {
	var parts []string
	for _, f := range queryFields {
		vals := t.Tag(f.tag)
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		parts = append(parts, f.field+":("+vals[0]+")")
	}
	return strings.Join(parts, " ")
}
