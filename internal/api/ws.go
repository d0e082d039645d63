package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/scribblestars/scribble-engine/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleScoreUpdatesWS subscribes the caller to the score-update stream
func (s *Server) handleScoreUpdatesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}

	ws := realtime.NewWSConn(conn, s.wsWriteTimeout)
	s.hub.SubscribeScore(ws)
	defer s.hub.UnsubscribeScore(ws)

	s.keepAlive(conn)
}

// handleLeaderboardWS subscribes the caller to the leaderboard stream
func (s *Server) handleLeaderboardWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}

	ws := realtime.NewWSConn(conn, s.wsWriteTimeout)
	s.hub.SubscribeLeaderboard(ws)
	defer s.hub.UnsubscribeLeaderboard(ws)

	s.keepAlive(conn)
}

// keepAlive drains inbound frames until the peer goes away. Subscribers never
// send anything meaningful; the read loop only detects disconnects.
func (s *Server) keepAlive(conn *websocket.Conn) {
	defer conn.Close()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}
