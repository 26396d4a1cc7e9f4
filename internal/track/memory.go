package track

import (
	"strings"
	"sync"
)

// Memory is a Track kept entirely in memory. WriteTags records a snapshot of
// the current tags, which makes it useful as a host stand-in.
type Memory struct {
	mu      sync.Mutex
	tags    map[string][]string
	written map[string][]string
	writes  int
	// WriteErr, when set, is returned by WriteTags and nothing is recorded.
	WriteErr error
}

// NewMemory creates a Memory track seeded with the given tags.
func NewMemory(tags map[string][]string) *Memory {
	m := &Memory{tags: make(map[string][]string)}
	for k, v := range tags {
		m.tags[strings.ToLower(k)] = append([]string(nil), v...)
	}
	return m
}

func (m *Memory) Tag(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals, ok := m.tags[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return append([]string(nil), vals...)
}

func (m *Memory) SetTag(name string, values []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[strings.ToLower(name)] = append([]string(nil), values...)
}

func (m *Memory) WriteTags() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.written = make(map[string][]string, len(m.tags))
	for k, v := range m.tags {
		m.written[k] = append([]string(nil), v...)
	}
	m.writes++
	return nil
}

// Written returns the tags as of the last successful WriteTags, or nil.
func (m *Memory) Written() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.written == nil {
		return nil
	}
	out := make(map[string][]string, len(m.written))
	for k, v := range m.written {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Writes reports how many times WriteTags succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
