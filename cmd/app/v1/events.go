package v1

import (
	"log/slog"
	"net/http"
	"time"

	"docpipe/cmd/app/core/middleware"
	"docpipe/cmd/app/types"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionEvents streams the session's notifications as JSON text messages
// until the client goes away or the session is deleted.
func SessionEvents(rc types.RouteConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := entry(rc, w, r)
		if !ok {
			return
		}
		requestID := middleware.RequestID(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("Websocket upgrade failed",
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
			return
		}
		defer conn.Close()

		events, unsubscribe := e.Events.Subscribe()
		defer unsubscribe()
		slog.Info("Event stream opened",
			slog.String("request_id", requestID),
			slog.String("session_id", e.ID),
		)

		// The read loop only detects close frames and keeps pong deadlines.
		gone := make(chan struct{})
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-gone:
				slog.Info("Event stream closed by client", slog.String("session_id", e.ID))
				return
			case n, ok := <-events:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
					return
				}
				if err := conn.WriteJSON(n); err != nil {
					slog.Warn("Event write failed",
						slog.String("session_id", e.ID),
						slog.String("error", err.Error()),
					)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
