package web

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"mbsuggest/internal/suggest"
)

// Entry is a suggestion session opened through the web host
type Entry struct {
	ID        string
	Path      string
	Session   *suggest.Session
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
	Message   string // last user-facing message
}

// SessionManager tracks open suggestion sessions and their listeners
type SessionManager struct {
	entries   map[string]*Entry
	mu        sync.RWMutex
	listeners map[string][]chan SessionResponse
}

const sessionRetention = 1 * time.Hour

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		entries:   make(map[string]*Entry),
		listeners: make(map[string][]chan SessionResponse),
	}
}

// StartCleanup starts a background goroutine that removes old closed sessions.
// Stops when ctx is cancelled.
func (sm *SessionManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.cleanup()
			}
		}
	}()
}

func (sm *SessionManager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := time.Now().Add(-sessionRetention)
	for id, e := range sm.entries {
		if e.ClosedAt != nil && e.ClosedAt.Before(cutoff) {
			delete(sm.entries, id)
			for _, ch := range sm.listeners[id] {
				close(ch)
			}
			delete(sm.listeners, id)
		}
	}
}

// Create registers a session for the track at path
func (sm *SessionManager) Create(path string, sess *suggest.Session) *Entry {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	e := &Entry{
		ID:        ulid.Make().String(),
		Path:      path,
		Session:   sess,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sm.entries[e.ID] = e
	return e
}

// Get retrieves a session by ID
func (sm *SessionManager) Get(id string) (*Entry, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	e, ok := sm.entries[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return e, nil
}

// Snapshot renders a session under the manager lock
func (sm *SessionManager) Snapshot(id string) (SessionResponse, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	e, ok := sm.entries[id]
	if !ok {
		return SessionResponse{}, fmt.Errorf("session not found: %s", id)
	}
	return toResponse(e), nil
}

// List returns snapshots of all sessions, newest first
func (sm *SessionManager) List() []SessionResponse {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]SessionResponse, 0, len(sm.entries))
	for _, e := range sm.entries {
		out = append(out, toResponse(e))
	}
	// ULIDs sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Update mutates a session entry and notifies its listeners
func (sm *SessionManager) Update(id string, fn func(*Entry)) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	e, ok := sm.entries[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	fn(e)
	e.UpdatedAt = time.Now()

	// A session back in Idle was saved or closed; a new search reopens it.
	if e.Session.State() == suggest.StateIdle {
		if e.ClosedAt == nil {
			now := e.UpdatedAt
			e.ClosedAt = &now
		}
	} else {
		e.ClosedAt = nil
	}

	sm.notifyListeners(id, e)
	return nil
}

// Subscribe subscribes to session updates
func (sm *SessionManager) Subscribe(id string) <-chan SessionResponse {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan SessionResponse, 10)
	sm.listeners[id] = append(sm.listeners[id], ch)
	return ch
}

// Unsubscribe removes a listener
func (sm *SessionManager) Unsubscribe(id string, ch <-chan SessionResponse) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	listeners := sm.listeners[id]
	for i, listener := range listeners {
		if listener == ch {
			sm.listeners[id] = append(listeners[:i], listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notifyListeners sends updates to all listeners without blocking
func (sm *SessionManager) notifyListeners(id string, e *Entry) {
	resp := toResponse(e)
	for _, ch := range sm.listeners[id] {
		select {
		case ch <- resp:
		default:
		}
	}
}
