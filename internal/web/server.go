package web

import (
	"context"
	"net/http"

	"mbsuggest/internal/config"
	"mbsuggest/internal/logger"
	"mbsuggest/internal/metadata"
	"mbsuggest/internal/track"
)

type Server struct {
	ctx       context.Context
	sessions  *SessionManager
	provider  metadata.Provider
	config    config.Config
	logger    *logger.Logger
	openTrack func(path string) (track.Track, error)
}

func NewServer(ctx context.Context, sessions *SessionManager, p metadata.Provider, cfg config.Config, log *logger.Logger) *Server {
	return &Server{
		ctx:      ctx,
		sessions: sessions,
		provider: p,
		config:   cfg,
		logger:   log,
		openTrack: func(path string) (track.Track, error) {
			f, err := track.Open(path)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/tracks", s.handleListTracks)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionAction)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
