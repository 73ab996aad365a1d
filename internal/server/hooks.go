package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alia5/syncbackend/internal/hook"
)

// HookAck answers every event received on the hook socket.
type HookAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// hookBridge feeds lifecycle events sent by a running host into the hook
// registry, one JSON event per text message.
func (s *Server) hookBridge(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Hook upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("remote", r.RemoteAddr)
	logger.Info("Hook client connected")
	defer logger.Info("Hook client disconnected")

	for {
		if s.cfg.HookReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.HookReadTimeout))
		}
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Hook read", "error", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		ack := HookAck{OK: true}
		var ev hook.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			ack = HookAck{Error: "decode event: " + err.Error()}
		} else if err := s.hooks.Dispatch(ev); err != nil {
			ack = HookAck{Error: err.Error()}
		} else {
			logger.Debug("Hook event", "event", ev.Kind, "object", ev.Object.Name)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(ack); err != nil {
			logger.Debug("Hook write", "error", err)
			return
		}
	}
}
