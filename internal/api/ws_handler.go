package api

import (
	"net/http"

	"quickchat/internal/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebsocket upgrades the live channel. A valid ?token= binds the
// connection to its user; without one the connection is still accepted but
// stays anonymous and out of the presence registry.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	uid := uuid.Nil
	if token := r.URL.Query().Get("token"); token != "" {
		if id, err := s.tokens.Verify(token); err == nil {
			uid = id
		} else {
			s.log.Debug("websocket token rejected", "error", err)
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "error", err)
		return
	}

	client := ws.NewClient(s.hub, conn, uid, s.cfg.SendBuffer)
	s.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
