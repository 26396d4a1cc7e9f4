package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mbsuggest/internal/suggest"
	"mbsuggest/internal/track"
	"mbsuggest/pkg/utils"
)

type OpenRequest struct {
	Path string `json:"path"`
}

type SelectRequest struct {
	Row int `json:"row"`
}

type ColumnResponse struct {
	Title string `json:"title"`
	Width int    `json:"width"`
}

type SessionResponse struct {
	ID        string           `json:"id"`
	Path      string           `json:"path"`
	State     string           `json:"state"`
	Query     string           `json:"query"`
	Columns   []ColumnResponse `json:"columns"`
	Rows      [][]string       `json:"rows"`
	Selected  int              `json:"selected"`
	Message   string           `json:"message,omitempty"`
	CreatedAt string           `json:"created_at"`
	ClosedAt  *string          `json:"closed_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	files, err := utils.FindAudioFiles(s.config.LibraryDir)
	if err != nil {
		s.logger.Error("Failed to list tracks: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []string{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sessions.List())
	case http.MethodPost:
		s.handleOpenSession(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Path == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	full, err := utils.ResolveInDir(s.config.LibraryDir, req.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !utils.IsAudioFile(full) {
		http.Error(w, "Not an audio file", http.StatusBadRequest)
		return
	}

	t, err := s.openTrack(full)
	if err != nil {
		s.logger.Error("Failed to open %s: %v", full, err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	plugin := suggest.New(s.provider, suggest.HostFunc(func() (track.Track, error) {
		return t, nil
	}), s.logger)

	entry := s.sessions.Create(req.Path, plugin.NewSession())
	s.logger.Info("Opened session %s for %s", entry.ID, req.Path)

	if err := s.startSearch(entry.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeSnapshot(w, http.StatusCreated, entry.ID)
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	// Extract session ID from path: /api/sessions/{id} or /api/sessions/{id}/{action}
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	id := parts[0]
	entry, err := s.sessions.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// Handle GET /api/sessions/{id}
	if r.Method == http.MethodGet && len(parts) == 1 {
		s.writeSnapshot(w, http.StatusOK, id)
		return
	}

	if r.Method != http.MethodPost || len(parts) != 2 {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "select":
		s.handleSelect(w, r, id)
	case "save":
		s.handleSave(w, entry, id)
	case "search":
		if err := s.startSearch(id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeSnapshot(w, http.StatusOK, id)
	case "close":
		s.sessions.Update(id, func(e *Entry) {
			e.Message = ""
			e.Session.Close()
		})
		s.logger.Info("Closed session %s", id)
		s.writeSnapshot(w, http.StatusOK, id)
	default:
		http.Error(w, "Invalid request", http.StatusBadRequest)
	}
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, id string) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var selErr error
	s.sessions.Update(id, func(e *Entry) {
		e.Message = ""
		selErr = e.Session.Select(req.Row)
	})
	if selErr != nil {
		http.Error(w, selErr.Error(), http.StatusBadRequest)
		return
	}

	s.writeSnapshot(w, http.StatusOK, id)
}

func (s *Server) handleSave(w http.ResponseWriter, entry *Entry, id string) {
	// The tag write runs outside the manager lock; only the notify needs it.
	saveErr := entry.Session.Save()
	s.sessions.Update(id, func(e *Entry) {
		e.Message = suggest.UserMessage(saveErr)
	})

	var verr *suggest.ValidationError
	switch {
	case errors.As(saveErr, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Message})
	case saveErr != nil:
		s.logger.Error("Failed to save session %s: %v", id, saveErr)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: saveErr.Error()})
	default:
		s.writeSnapshot(w, http.StatusOK, id)
	}
}

// startSearch begins a fetch for the session and delivers its result in the
// background.
func (s *Server) startSearch(id string) error {
	var fetch *suggest.Fetch
	var beginErr error
	if err := s.sessions.Update(id, func(e *Entry) {
		e.Message = ""
		fetch, beginErr = e.Session.Begin(s.ctx)
	}); err != nil {
		return err
	}
	if beginErr != nil {
		s.logger.Error("Failed to start search for session %s: %v", id, beginErr)
		return beginErr
	}

	go func() {
		res := fetch.Run()
		switch {
		case errors.Is(res.Err, context.Canceled):
			s.logger.Debug("Search for session %s cancelled", id)
		case res.Err != nil:
			s.logger.Error("Search for session %s failed: %v", id, res.Err)
		}
		s.sessions.Update(id, func(e *Entry) {
			e.Session.Deliver(res)
		})
	}()
	return nil
}

func (s *Server) writeSnapshot(w http.ResponseWriter, status int, id string) {
	resp, err := s.sessions.Snapshot(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func toResponse(e *Entry) SessionResponse {
	snap := e.Session.Snapshot()

	resp := SessionResponse{
		ID:        e.ID,
		Path:      e.Path,
		State:     snap.State.String(),
		Query:     snap.Query,
		Columns:   make([]ColumnResponse, len(suggest.Columns)),
		Rows:      make([][]string, len(snap.Rows)),
		Selected:  snap.Selected,
		Message:   e.Message,
		CreatedAt: e.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	for i, c := range suggest.Columns {
		resp.Columns[i] = ColumnResponse{Title: c.Title, Width: c.Width}
	}
	for i, row := range snap.Rows {
		resp.Rows[i] = row.Fields()
	}
	if snap.Err != nil {
		resp.Message = suggest.UserMessage(snap.Err)
	}

	if e.ClosedAt != nil {
		closed := e.ClosedAt.Format("2006-01-02 15:04:05")
		resp.ClosedAt = &closed
	}

	return resp
}
