package track

import (
	"fmt"
	"strings"

	"go.senan.xyz/taglib"
)

var taglibKeys = map[string]string{
	Artist:      taglib.Artist,
	Title:       taglib.Title,
	Album:       taglib.Album,
	TrackNumber: taglib.TrackNumber,
}

func taglibKey(name string) string {
	name = strings.ToLower(name)
	if key, ok := taglibKeys[name]; ok {
		return key
	}
	return strings.ToUpper(name)
}

// File is a Track backed by an audio file on disk. Tags are read once on
// Open; SetTag stages changes that WriteTags flushes through taglib.
type File struct {
	path    string
	tags    map[string][]string
	pending map[string][]string
}

// Open reads the tags of the audio file at path.
func Open(path string) (*File, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}
	if tags == nil {
		tags = make(map[string][]string)
	}
	return &File{
		path:    path,
		tags:    tags,
		pending: make(map[string][]string),
	}, nil
}

// Path returns the file the track was opened from.
func (f *File) Path() string { return f.path }

func (f *File) Tag(name string) []string {
	vals, ok := f.tags[taglibKey(name)]
	if !ok {
		return nil
	}
	return append([]string(nil), vals...)
}

func (f *File) SetTag(name string, values []string) {
	key := taglibKey(name)
	vals := append([]string(nil), values...)
	f.tags[key] = vals
	f.pending[key] = vals
}

// WriteTags writes staged tags to disk. Tags that were never set are left as
// they are in the file.
func (f *File) WriteTags() error {
	if len(f.pending) == 0 {
		return nil
	}
	if err := taglib.WriteTags(f.path, f.pending, 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", f.path, err)
	}
	f.pending = make(map[string][]string)
	return nil
}
