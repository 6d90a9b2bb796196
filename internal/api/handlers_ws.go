package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and attaches it to the broadcast
// hub. The read loop exists to surface pong frames and detect client closes;
// inbound data frames are discarded.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	s.hub.Register(conn)

	conn.SetPongHandler(func(string) error {
		s.hub.MarkAlive(conn)
		return nil
	})

	go func() {
		defer func() {
			s.hub.Unregister(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
