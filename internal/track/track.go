// Package track defines the tag contract the suggestion flow consumes and
// adapters that implement it over audio files and plain memory.
package track

// Tag names understood by the suggestion flow.
const (
	Artist      = "artist"
	Title       = "title"
	Album       = "album"
	TrackNumber = "tracknumber"
)

// Track is a tagged item owned by the host. Tag names are lowercase.
type Track interface {
	// Tag returns every value stored under name, or nil when the tag is absent.
	Tag(name string) []string
	// SetTag replaces all values stored under name.
	SetTag(name string, values []string)
	// WriteTags persists pending tag changes.
	WriteTags() error
}

// First returns the first value of a tag, or "" when absent.
func First(t Track, name string) string {
	if vals := t.Tag(name); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
