package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"webforge/internal/events"
	"webforge/internal/logging"
)

const (
	wsFirstMessageTimeout = 30 * time.Second
	wsWriteTimeout        = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 64 << 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS accepts the request as the first text message and then streams
// every line as one JSON text frame. Input errors are sent as a single error
// line before the socket closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxBody())

	_ = conn.SetReadDeadline(time.Now().Add(wsFirstMessageTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logging.Debug("ws closed before request", "error", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	params, bad := s.decode(data)
	if bad != nil {
		writeLine(conn, events.Line{Type: events.LineError, Error: bad.Error})
		closeNormal(conn)
		return
	}

	ctx, cancel := s.runContext(r)
	defer cancel()
	em := s.pipeline.Stream(ctx, params)

	// The read side only watches for the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				em.Detach()
				return
			}
		}
	}()

	for line := range em.Lines() {
		if em.Detached() {
			continue
		}
		if err := writeLine(conn, line); err != nil {
			logging.Info("ws client went away", "error", err)
			em.Detach()
		}
	}
	closeNormal(conn)
}

func writeLine(conn *websocket.Conn, line events.Line) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(line)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
