package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for simplicity
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	if _, err := s.sessions.Get(sessionID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe to session updates
	updates := s.sessions.Subscribe(sessionID)
	defer s.sessions.Unsubscribe(sessionID, updates)

	// Send initial session state
	if snap, err := s.sessions.Snapshot(sessionID); err == nil {
		if err := s.writeUpdate(conn, snap); err != nil {
			return
		}
		if snap.ClosedAt != nil {
			return
		}
	}

	// Listen for updates and send to client
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}

			if err := s.writeUpdate(conn, snap); err != nil {
				return
			}

			// Close connection once the dialog is saved or closed
			if snap.ClosedAt != nil {
				return
			}

		case <-s.ctx.Done():
			return

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeUpdate(conn *websocket.Conn, snap SessionResponse) error {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("Failed to marshal session: %v", err)
		return err
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to write WebSocket message: %v", err)
		return err
	}
	return nil
}
