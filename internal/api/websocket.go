package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket message types.
const (
	WSTypeSnapshot = "snapshot"

	// wsWriteTimeout bounds each write so a stalled client cannot pin
	// the push loop.
	wsWriteTimeout = 5 * time.Second
)

// WSMessage is a message pushed to a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Panel deployments sit on a trusted room network.
		return true
	},
}

// handleWebSocket upgrades the connection and pushes a state snapshot at
// the configured interval until the client disconnects or the server
// shuts down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)
	go s.pushSnapshots(conn)

	// Drain inbound frames so ping/pong and close are processed; the
	// protocol is push-only, so client payloads are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				//nolint:errcheck // connection is already failing
				conn.Close()
				return
			}
		}
	}()
}

// pushSnapshots writes a snapshot immediately and then on every tick.
func (s *Server) pushSnapshots(conn *websocket.Conn) {
	interval := time.Duration(s.cfg.WSPushInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer conn.Close() //nolint:errcheck // best-effort close on exit

	if err := s.writeSnapshot(conn); err != nil {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			//nolint:errcheck // best-effort close frame during shutdown
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-ticker.C:
			if err := s.writeSnapshot(conn); err != nil {
				s.logger.Debug("websocket client disconnected", "error", err)
				return
			}
		}
	}
}

// writeSnapshot sends one snapshot message with a write deadline.
func (s *Server) writeSnapshot(conn *websocket.Conn) error {
	snap := s.core.Snapshot()
	msg := WSMessage{
		Type:      WSTypeSnapshot,
		Timestamp: snap.CapturedAt,
		Payload:   snap,
	}
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
